package main

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samuelfneumann/simsac/agent"
	"github.com/samuelfneumann/simsac/agent/sac"
	"github.com/samuelfneumann/simsac/collector"
	"github.com/samuelfneumann/simsac/config"
	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/environment/envconfig"
	"github.com/samuelfneumann/simsac/environment/vector"
	"github.com/samuelfneumann/simsac/experiment"
	"github.com/samuelfneumann/simsac/experiment/checkpointer"
	"github.com/samuelfneumann/simsac/experiment/tracker"
	"github.com/samuelfneumann/simsac/experiment/trackers"
	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/initwfn"
	"github.com/samuelfneumann/simsac/solver"
	"github.com/samuelfneumann/simsac/worldmodel"
	log "github.com/sirupsen/logrus"
)

// run trains and tests an agent configured by args, then watches one
// episode of the trained policy
func run(args config.Args) error {
	opts := envconfig.Options{
		Discount:  args.Gamma,
		Gym:       args.Gym,
		RenderDir: args.RenderDir,
	}

	env, err := envconfig.Make(args.Task, args.Seed, opts)
	if err != nil {
		return errors.Wrap(err, "could not create environment")
	}
	obsDim := env.ObservationSpec().Dims()
	actDim := env.ActionSpec().Dims()
	low, high := env.ActionSpec().Range()
	if err := environment.Close(env); err != nil {
		return errors.Wrap(err, "could not close environment")
	}
	log.WithFields(log.Fields{
		"task":   args.Task,
		"obs":    obsDim,
		"act":    actDim,
		"action": []float64{low, high},
	}).Info("created environment")

	trainEnvs, err := newVector(args, args.TrainingNum, opts)
	if err != nil {
		return errors.Wrap(err, "could not create training environments")
	}
	testEnvs, err := newVector(args, args.TestNum, opts)
	if err != nil {
		return errors.Wrap(err, "could not create test environments")
	}

	initFn, err := initwfn.New(initwfn.Type(args.Init), args.InitGain)
	if err != nil {
		return errors.Wrap(err, "could not create initializer")
	}

	var model worldmodel.Model
	if args.UseModel() {
		model, err = newModel(args, obsDim, actDim, initFn, trainEnvs)
		if err != nil {
			return err
		}
	}

	policy, err := sac.New(sac.Config{
		ObsDim:             obsDim,
		ActDim:             actDim,
		ActionLow:          low,
		ActionHigh:         high,
		Hidden:             args.Hidden(),
		ActorLR:            args.ActorLR,
		CriticLR:           args.CriticLR,
		Solver:             solver.Type(args.Optimizer),
		Init:               initFn,
		Gamma:              args.Gamma,
		Tau:                args.Tau,
		Alpha:              args.Alpha,
		NStep:              args.NStep,
		RewNorm:            args.RewNorm != 0,
		IgnoreDone:         args.IgnoreDone != 0,
		BatchSize:          args.BatchSize,
		Model:              model,
		TrainSimulatorStep: args.TrainSimulatorStep,
		SimulatorBatchSize: args.SimulatorBatchSize,
		MaxUpdateStep:      args.MaxUpdateStep,
		NSimulatorStep:     args.NSimulatorStep,
		ModelRatio:         args.ModelRatio,
		ModelBufferSize:    args.BufferSize,
		Seed:               args.Seed,
	})
	if err != nil {
		return errors.Wrap(err, "could not create agent")
	}
	defer policy.Close()

	buffer, err := expreplay.Config{
		MinReplayCapacity: 1,
		MaxReplayCapacity: args.BufferSize,
	}.Create(obsDim, actDim, args.Seed)
	if err != nil {
		return errors.Wrap(err, "could not create replay buffer")
	}
	trainCollector, err := collector.New(policy, trainEnvs, buffer)
	if err != nil {
		return errors.Wrap(err, "could not create training collector")
	}
	defer trainCollector.Close()
	testCollector, err := collector.New(policy, testEnvs, nil)
	if err != nil {
		return errors.Wrap(err, "could not create test collector")
	}
	defer testCollector.Close()

	logPath, err := args.MakeLogPath()
	if err != nil {
		return err
	}
	runID, err := args.Save(logPath)
	if err != nil {
		return err
	}
	logger := log.WithField("run", runID)
	trainCollector.SetLogger(logger.WithField("collector", "train"))
	testCollector.SetLogger(logger.WithField("collector", "test"))

	t, stopMetrics, err := newTracker(args, logPath, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	c := experiment.Config{
		MaxEpoch:       args.Epoch,
		StepPerEpoch:   args.StepPerEpoch,
		CollectPerStep: args.CollectPerStep,
		EpisodePerTest: args.TestNum,
		BatchSize:      args.BatchSize,
		Tracker:        t,
		Logger:         logger,
		Quiet:          args.Quiet,
	}
	if args.SavePolicy {
		policyFile := filepath.Join(logPath, "policy.gob")
		c.SaveFn = func(agent.Policy) error {
			return checkpointer.Save(policy, policyFile)
		}
	}
	if args.CheckpointEvery > 0 {
		c.Checkpointer = checkpointer.NewNStep(args.CheckpointEvery, policy,
			checkpointer.EpochFilename(filepath.Join(logPath, "checkpoint"),
				".gob"))
	}
	if args.EarlyStop {
		if threshold, ok := envconfig.RewardThreshold(args.Task); ok {
			c.StopFn = func(reward float64) bool { return reward >= threshold }
			c.TestInTrain = true
		} else {
			logger.WithField("task", args.Task).Warn("task has no reward " +
				"threshold, early stopping disabled")
		}
	}

	result, err := experiment.OffPolicy(policy, trainCollector, testCollector,
		c)
	if err != nil {
		return errors.Wrap(err, "could not train")
	}
	if err := t.Save(); err != nil {
		return errors.Wrap(err, "could not save scalars")
	}
	logger.WithFields(result.Fields()).Info("training finished")

	return watch(args, opts, policy, logger)
}

// newVector returns n vectorized environments seeded from args.Seed
func newVector(args config.Args, n int, opts envconfig.Options) (vector.Env,
	error) {
	factories := envconfig.Factories(args.Task, n, args.Seed, opts)
	if args.Parallel {
		return vector.NewParallel(factories)
	}
	return vector.NewDummy(factories)
}

// newModel returns the world model configured by args. White-box
// models simulate with the dynamics of the first environment of envs.
func newModel(args config.Args, obsDim, actDim int, initFn *initwfn.InitWFn,
	envs vector.Env) (worldmodel.Model, error) {
	c := worldmodel.Config{
		ObsDim:          obsDim,
		ActDim:          actDim,
		LatentDim:       args.SimulatorLatentDim,
		HiddenDim:       args.SimulatorHiddenDim,
		LR:              args.SimulatorLR,
		ILLR:            args.ILLR,
		TrainBatch:      args.SimulatorBatchSize,
		PredictBatch:    args.NSimulatorStep,
		LossWeightTrans: args.LossWeightTrans,
		LossWeightAE:    args.LossWeightAE,
		LossWeightRew:   args.LossWeightRew,
		NoiseObs:        args.NoiseObs,
		NoiseRew:        args.NoiseRew,
		BoostStages:     args.BoostStages,
		WhiteBox:        args.WhiteBox,
		Init:            initFn,
		Solver:          solver.Type(args.Optimizer),
		Seed:            args.Seed,
		Logger:          log.WithField("model", args.Model),
	}

	if args.WhiteBox {
		sim, ok := vector.Environments(envs)[0].(environment.Simulator)
		if !ok {
			return nil, errors.Errorf("task %v does not expose its dynamics "+
				"for a white-box model", args.Task)
		}
		c.Simulator = sim
	}

	m, err := worldmodel.New(args.Model, c)
	if err != nil {
		return nil, errors.Wrap(err, "could not create world model")
	}
	return m, nil
}

// newTracker returns the tracker of a run, writing scalars to logPath.
// The returned function stops the metrics server, if any.
func newTracker(args config.Args, logPath string,
	logger log.FieldLogger) (tracker.Tracker, func(), error) {
	scalars := trackers.NewScalar(filepath.Join(logPath, "scalars.gob"))
	debug := trackers.NewLog(logger)
	if args.MetricsAddr == "" {
		return trackers.NewMulti(scalars, debug), func() {}, nil
	}

	reg := prometheus.NewRegistry()
	metrics, err := trackers.NewPrometheus(reg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not register metrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: args.MetricsAddr, Handler: mux}
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", args.MetricsAddr).Info("serving metrics")

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("could not stop metrics server")
		}
	}
	return trackers.NewMulti(scalars, debug, metrics), stop, nil
}

// watch runs one episode of policy in evaluation mode, rendering every
// args.Render seconds
func watch(args config.Args, opts envconfig.Options, policy agent.Policy,
	logger log.FieldLogger) error {
	env, err := vector.NewDummy(envconfig.Factories(args.Task, 1, args.Seed,
		opts))
	if err != nil {
		return errors.Wrap(err, "could not create environment")
	}
	c, err := collector.New(policy, env, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetLogger(logger)

	policy.Eval()
	result, err := c.CollectEpisodes(1, args.Render)
	if err != nil {
		return errors.Wrap(err, "could not watch policy")
	}
	logger.Infof("Final reward: %v, length: %v", result.Reward, result.Length)
	return nil
}
