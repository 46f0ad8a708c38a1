// Package config implements the command line and file configuration of
// a training run.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/initwfn"
	"github.com/samuelfneumann/simsac/solver"
	"github.com/samuelfneumann/simsac/worldmodel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// Devices that can be requested. Only CPU is available, CUDA falls
// back to CPU.
const (
	CPU  = "cpu"
	CUDA = "cuda"
)

// Args holds the configuration of a training run
type Args struct {
	Task           string  `yaml:"task" json:"task"`
	Seed           uint64  `yaml:"seed" json:"seed"`
	BufferSize     int     `yaml:"buffer-size" json:"buffer-size"`
	ActorLR        float64 `yaml:"actor-lr" json:"actor-lr"`
	CriticLR       float64 `yaml:"critic-lr" json:"critic-lr"`
	ILLR           float64 `yaml:"il-lr" json:"il-lr"`
	Gamma          float64 `yaml:"gamma" json:"gamma"`
	Tau            float64 `yaml:"tau" json:"tau"`
	Alpha          float64 `yaml:"alpha" json:"alpha"`
	Epoch          int     `yaml:"epoch" json:"epoch"`
	StepPerEpoch   int     `yaml:"step-per-epoch" json:"step-per-epoch"`
	CollectPerStep int     `yaml:"collect-per-step" json:"collect-per-step"`
	BatchSize      int     `yaml:"batch-size" json:"batch-size"`
	LayerNum       int     `yaml:"layer-num" json:"layer-num"`
	TrainingNum    int     `yaml:"training-num" json:"training-num"`
	TestNum        int     `yaml:"test-num" json:"test-num"`
	LogDir         string  `yaml:"logdir" json:"logdir"`
	Render         float64 `yaml:"render" json:"render"`
	RewNorm        int     `yaml:"rew-norm" json:"rew-norm"`
	IgnoreDone     int     `yaml:"ignore-done" json:"ignore-done"`
	NStep          int     `yaml:"n-step" json:"n-step"`

	TrainSimulatorStep int     `yaml:"train-simulator-step" json:"train-simulator-step"`
	SimulatorLatentDim int     `yaml:"simulator-latent-dim" json:"simulator-latent-dim"`
	SimulatorHiddenDim int     `yaml:"simulator-hidden-dim" json:"simulator-hidden-dim"`
	SimulatorLR        float64 `yaml:"simulator-lr" json:"simulator-lr"`
	Model              string  `yaml:"model" json:"model"`
	MaxUpdateStep      int     `yaml:"max-update-step" json:"max-update-step"`
	SimulatorBatchSize int     `yaml:"simulator-batch-size" json:"simulator-batch-size"`
	WhiteBox           bool    `yaml:"white-box" json:"white-box"`
	LossWeightTrans    float64 `yaml:"loss-weight-trans" json:"loss-weight-trans"`
	LossWeightAE       float64 `yaml:"loss-weight-ae" json:"loss-weight-ae"`
	LossWeightRew      float64 `yaml:"loss-weight-rew" json:"loss-weight-rew"`
	NoiseObs           float64 `yaml:"noise-obs" json:"noise-obs"`
	NoiseRew           float64 `yaml:"noise-rew" json:"noise-rew"`
	NSimulatorStep     int     `yaml:"n-simulator-step" json:"n-simulator-step"`
	Baseline           bool    `yaml:"baseline" json:"baseline"`
	Device             string  `yaml:"device" json:"device"`

	LogLevel        string  `yaml:"log-level" json:"log-level"`
	LogFormat       string  `yaml:"log-format" json:"log-format"`
	MetricsAddr     string  `yaml:"metrics-addr" json:"metrics-addr"`
	Parallel        bool    `yaml:"parallel" json:"parallel"`
	Gym             bool    `yaml:"gym" json:"gym"`
	SavePolicy      bool    `yaml:"save-policy" json:"save-policy"`
	CheckpointEvery int     `yaml:"checkpoint-every" json:"checkpoint-every"`
	RenderDir       string  `yaml:"render-dir" json:"render-dir"`
	EarlyStop       bool    `yaml:"early-stop" json:"early-stop"`
	ModelRatio      float64 `yaml:"model-ratio" json:"model-ratio"`
	BoostStages     int     `yaml:"boost-stages" json:"boost-stages"`
	Optimizer       string  `yaml:"optimizer" json:"optimizer"`
	Init            string  `yaml:"init" json:"init"`
	InitGain        float64 `yaml:"init-gain" json:"init-gain"`
	Quiet           bool    `yaml:"quiet" json:"quiet"`
}

// Default returns the default configuration
func Default() Args {
	return Args{
		Task:           "CarRacing-v0",
		Seed:           0,
		BufferSize:     20000,
		ActorLR:        3e-4,
		CriticLR:       1e-3,
		ILLR:           1e-3,
		Gamma:          0.99,
		Tau:            0.005,
		Alpha:          0.2,
		Epoch:          1,
		StepPerEpoch:   1600,
		CollectPerStep: 10,
		BatchSize:      128,
		LayerNum:       1,
		TrainingNum:    8,
		TestNum:        100,
		LogDir:         "log",
		Render:         0,
		RewNorm:        1,
		IgnoreDone:     1,
		NStep:          4,

		TrainSimulatorStep: 3,
		SimulatorLatentDim: 4,
		SimulatorHiddenDim: 128,
		SimulatorLR:        1e-3,
		Model:              worldmodel.NODAE,
		MaxUpdateStep:      400,
		SimulatorBatchSize: 1024,
		LossWeightTrans:    1,
		LossWeightAE:       1,
		LossWeightRew:      1,
		NSimulatorStep:     200,
		Device:             CPU,

		LogLevel:    "info",
		LogFormat:   "text",
		ModelRatio:  0.5,
		BoostStages: 3,
		Optimizer:   string(solver.Adam),
		Init:        string(initwfn.GlorotU),
		InitGain:    1.0,
	}
}

// BindFlags binds the flags of fs to the fields of a, with the current
// values of a as defaults
func BindFlags(fs *pflag.FlagSet, a *Args) {
	fs.StringVar(&a.Task, "task", a.Task, "task to train on")
	fs.Uint64Var(&a.Seed, "seed", a.Seed, "random seed")
	fs.IntVar(&a.BufferSize, "buffer-size", a.BufferSize,
		"replay buffer capacity")
	fs.Float64Var(&a.ActorLR, "actor-lr", a.ActorLR, "actor learning rate")
	fs.Float64Var(&a.CriticLR, "critic-lr", a.CriticLR,
		"critic learning rate")
	fs.Float64Var(&a.ILLR, "il-lr", a.ILLR,
		"learning rate of boosted world model stages")
	fs.Float64Var(&a.Gamma, "gamma", a.Gamma, "discount factor")
	fs.Float64Var(&a.Tau, "tau", a.Tau, "target network averaging rate")
	fs.Float64Var(&a.Alpha, "alpha", a.Alpha, "entropy temperature")
	fs.IntVar(&a.Epoch, "epoch", a.Epoch, "number of epochs")
	fs.IntVar(&a.StepPerEpoch, "step-per-epoch", a.StepPerEpoch,
		"updates per epoch")
	fs.IntVar(&a.CollectPerStep, "collect-per-step", a.CollectPerStep,
		"environment steps collected per iteration")
	fs.IntVar(&a.BatchSize, "batch-size", a.BatchSize, "SAC batch size")
	fs.IntVar(&a.LayerNum, "layer-num", a.LayerNum,
		"hidden layers of actor and critics, plus one")
	fs.IntVar(&a.TrainingNum, "training-num", a.TrainingNum,
		"number of training environments")
	fs.IntVar(&a.TestNum, "test-num", a.TestNum, "episodes per test")
	fs.StringVar(&a.LogDir, "logdir", a.LogDir, "log directory")
	fs.Float64Var(&a.Render, "render", a.Render,
		"seconds between rendered frames, 0 disables rendering")
	fs.IntVar(&a.RewNorm, "rew-norm", a.RewNorm,
		"normalize rewards in n-step returns (0 or 1)")
	fs.IntVar(&a.IgnoreDone, "ignore-done", a.IgnoreDone,
		"ignore episode ends in n-step returns (0 or 1)")
	fs.IntVar(&a.NStep, "n-step", a.NStep, "steps of n-step returns")

	fs.IntVar(&a.TrainSimulatorStep, "train-simulator-step",
		a.TrainSimulatorStep, "world model training steps per update")
	fs.IntVar(&a.SimulatorLatentDim, "simulator-latent-dim",
		a.SimulatorLatentDim, "latent size of NODAE")
	fs.IntVar(&a.SimulatorHiddenDim, "simulator-hidden-dim",
		a.SimulatorHiddenDim, "hidden units of world model networks")
	fs.Float64Var(&a.SimulatorLR, "simulator-lr", a.SimulatorLR,
		"world model learning rate")
	fs.StringVar(&a.Model, "model", a.Model, "world model, one of "+
		strings.Join(worldmodel.Names(), ", "))
	fs.IntVar(&a.MaxUpdateStep, "max-update-step", a.MaxUpdateStep,
		"update from which simulated transitions are used")
	fs.IntVar(&a.SimulatorBatchSize, "simulator-batch-size",
		a.SimulatorBatchSize, "world model batch size")
	fs.BoolVar(&a.WhiteBox, "white-box", a.WhiteBox,
		"use the true dynamics as the prior of PriorGBM")
	fs.Float64Var(&a.LossWeightTrans, "loss-weight-trans", a.LossWeightTrans,
		"weight of the world model transition loss")
	fs.Float64Var(&a.LossWeightAE, "loss-weight-ae", a.LossWeightAE,
		"weight of the world model autoencoder loss")
	fs.Float64Var(&a.LossWeightRew, "loss-weight-rew", a.LossWeightRew,
		"weight of the world model reward loss")
	fs.Float64Var(&a.NoiseObs, "noise-obs", a.NoiseObs,
		"std of noise added to observation targets")
	fs.Float64Var(&a.NoiseRew, "noise-rew", a.NoiseRew,
		"std of noise added to reward targets")
	fs.IntVar(&a.NSimulatorStep, "n-simulator-step", a.NSimulatorStep,
		"simulated transitions per update")
	fs.BoolVar(&a.Baseline, "baseline", a.Baseline,
		"train plain SAC without a world model")
	fs.StringVar(&a.Device, "device", a.Device, "cpu or cuda")

	fs.StringVar(&a.LogLevel, "log-level", a.LogLevel, "logging level")
	fs.StringVar(&a.LogFormat, "log-format", a.LogFormat, "text or json")
	fs.StringVar(&a.MetricsAddr, "metrics-addr", a.MetricsAddr,
		"address of the prometheus endpoint, empty disables it")
	fs.BoolVar(&a.Parallel, "parallel", a.Parallel,
		"step environments in parallel")
	fs.BoolVar(&a.Gym, "gym", a.Gym, "create environments with OpenAI "+
		"Gym, needs a build with -tags gym")
	fs.BoolVar(&a.SavePolicy, "save-policy", a.SavePolicy,
		"save the policy with the best test reward")
	fs.IntVar(&a.CheckpointEvery, "checkpoint-every", a.CheckpointEvery,
		"epochs between policy checkpoints, 0 disables checkpoints")
	fs.StringVar(&a.RenderDir, "render-dir", a.RenderDir,
		"directory rendered frames are written to")
	fs.BoolVar(&a.EarlyStop, "early-stop", a.EarlyStop,
		"stop when the test reward reaches the task threshold")
	fs.Float64Var(&a.ModelRatio, "model-ratio", a.ModelRatio,
		"share of simulated transitions in a SAC batch")
	fs.IntVar(&a.BoostStages, "boost-stages", a.BoostStages,
		"boosted stages of ODEGBM and PriorGBM")
	fs.StringVar(&a.Optimizer, "optimizer", a.Optimizer,
		"Adam, RMSProp, or Vanilla")
	fs.StringVar(&a.Init, "init", a.Init, "weight initializer")
	fs.Float64Var(&a.InitGain, "init-gain", a.InitGain,
		"gain of the weight initializer")
	fs.BoolVar(&a.Quiet, "quiet", a.Quiet, "disable the progress bar")
}

// Load loads the configuration file path, YAML or JSON by extension,
// into a. Flags of fs that were set explicitly keep their values.
func Load(path string, fs *pflag.FlagSet, a *Args) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "could not read config file")
	}

	explicit := make(map[string]string)
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(data, a)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(a)
	default:
		return errors.Errorf("unknown config file extension %q", ext)
	}
	if err != nil {
		return errors.Wrapf(err, "could not parse %v", path)
	}

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return errors.Wrapf(err, "could not restore flag %v", name)
		}
	}
	return nil
}

// Finalize applies the overrides implied by the configuration
func (a *Args) Finalize(logger logrus.FieldLogger) {
	if a.Baseline {
		a.TrainSimulatorStep = 0
		a.MaxUpdateStep = 2*a.Epoch*a.StepPerEpoch + 1
	}
	if a.Device == CUDA {
		logger.Warn("cuda is not available, using cpu")
		a.Device = CPU
	}
}

// Validate returns an error describing an invalid configuration
func (a *Args) Validate() error {
	positive := map[string]int{
		"buffer-size":          a.BufferSize,
		"epoch":                a.Epoch,
		"step-per-epoch":       a.StepPerEpoch,
		"collect-per-step":     a.CollectPerStep,
		"batch-size":           a.BatchSize,
		"training-num":         a.TrainingNum,
		"test-num":             a.TestNum,
		"simulator-latent-dim": a.SimulatorLatentDim,
		"simulator-hidden-dim": a.SimulatorHiddenDim,
		"simulator-batch-size": a.SimulatorBatchSize,
		"n-simulator-step":     a.NSimulatorStep,
	}
	for name, value := range positive {
		if value <= 0 {
			return errors.Errorf("%v must be positive, have %v", name, value)
		}
	}
	if a.LayerNum < 0 || a.TrainSimulatorStep < 0 || a.MaxUpdateStep < 0 ||
		a.BoostStages < 0 || a.CheckpointEvery < 0 {
		return errors.New("layer-num, train-simulator-step, " +
			"max-update-step, boost-stages, and checkpoint-every must be " +
			"non-negative")
	}
	if a.NStep < 1 {
		return errors.Errorf("n-step must be >= 1, have %v", a.NStep)
	}
	if a.Tau <= 0 || a.Tau > 1 {
		return errors.Errorf("tau must be in (0, 1], have %v", a.Tau)
	}
	if a.Gamma < 0 || a.Gamma > 1 {
		return errors.Errorf("gamma must be in [0, 1], have %v", a.Gamma)
	}
	if a.ModelRatio < 0 || a.ModelRatio >= 1 {
		return errors.Errorf("model-ratio must be in [0, 1), have %v",
			a.ModelRatio)
	}
	if a.Render < 0 {
		return errors.Errorf("render must be non-negative, have %v", a.Render)
	}

	known := false
	for _, name := range worldmodel.Names() {
		known = known || name == a.Model
	}
	if !known {
		return errors.Errorf("unknown model %v, want one of %v", a.Model,
			worldmodel.Names())
	}

	if _, err := solver.New(solver.Type(a.Optimizer), 1, 1); err != nil {
		return errors.Wrap(err, "invalid optimizer")
	}
	if _, err := initwfn.New(initwfn.Type(a.Init), a.InitGain); err != nil {
		return errors.Wrap(err, "invalid initializer")
	}
	if _, err := logrus.ParseLevel(a.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if a.LogFormat != "text" && a.LogFormat != "json" {
		return errors.Errorf("log format must be text or json, have %v",
			a.LogFormat)
	}
	if a.Device != CPU && a.Device != CUDA {
		return errors.Errorf("unknown device %v", a.Device)
	}
	return nil
}

// UseModel returns whether a world model is trained or used
func (a *Args) UseModel() bool {
	return a.TrainSimulatorStep > 0 ||
		a.MaxUpdateStep <= a.Epoch*a.StepPerEpoch
}

// Hidden returns the hidden layer sizes of the actor and critics
func (a *Args) Hidden() []int {
	hidden := make([]int, a.LayerNum+1)
	for i := range hidden {
		hidden[i] = 128
	}
	return hidden
}

// LogPath returns the log directory of the run
func (a *Args) LogPath() string {
	path := filepath.Join(a.LogDir, a.Task, "sac")
	if a.Baseline {
		path = filepath.Join(path, "baseline")
	}
	return path
}

// MakeLogPath creates the log directory of the run and returns it
func (a *Args) MakeLogPath() (string, error) {
	path := a.LogPath()
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", errors.Wrap(err, "could not create log directory")
	}
	return path, nil
}

// run is the record of a run saved to the log directory
type run struct {
	ID   string `json:"id"`
	Args Args   `json:"args"`
}

// Save writes the configuration to args.json in dir, tagged with a new
// run id, and returns the run id
func (a *Args) Save(dir string) (string, error) {
	id := uuid.New().String()
	data, err := json.MarshalIndent(run{ID: id, Args: *a}, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "could not encode arguments")
	}

	path := filepath.Join(dir, "args.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "could not save arguments")
	}
	return id, nil
}
