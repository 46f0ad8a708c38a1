// Package carracing provides a top-down car racing environment simulated
// with Box2D.
package carracing

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/timestep"
	"github.com/samuelfneumann/simsac/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	FPS float64 = 50

	// Track
	TrackRadius    float64 = 60.0
	Checkpoints    int     = 12
	TileLength     float64 = 3.0
	TrackHalfWidth float64 = 5.0
	PlayField      float64 = 2.2 * TrackRadius

	// Car
	CarHalfWidth   float64 = 1.0
	CarHalfLength  float64 = 2.0
	CarDensity     float64 = 1.0
	LinearDamping  float64 = 0.5
	AngularDamping float64 = 2.0
	EngineAccel    float64 = 12.0
	BrakeAccel     float64 = 20.0
	SteerRate      float64 = 2.5 // rad/s at full lock above SteerSpeed
	SteerSpeed     float64 = 10.0
	Grip           float64 = 0.8 // fraction of sideways velocity removed per step

	// Rewards
	StepPenalty     float64 = 0.1
	TrackReward     float64 = 1000.0
	OffFieldPenalty float64 = -100.0
	MaxEpisodeSteps int     = 1000
	RewardThreshold float64 = 900.0

	// Observations
	Lookahead       int = 5
	LookaheadStride int = 2
	ActionDims      int = 3
	ObservationDims int = 6 + 2*Lookahead
)

const (
	velocityIters    int     = 6
	positionIters    int     = 2
	speedScale       float64 = 10.0
	lookaheadScale   float64 = 20.0
	defaultRenderDir string  = "frames"
)

// CarRacing implements a top-down racing environment. On each reset a
// random closed track is generated and the car is placed at its first
// tile, facing along the track.
//
// Actions are continuous and 3-dimensional: [steer, gas, brake], with
// steer in [-1, 1] (negative steers left) and gas and brake in [0, 1].
// Actions outside these bounds are clipped.
//
// Observations are 6 + 2*Lookahead dimensional:
//
//	forward speed, sideways speed, angular velocity, steering,
//	lateral offset from the track centre, heading error,
//	car-frame (x, y) positions of Lookahead upcoming waypoints.
//
// The reward is -StepPenalty per step plus TrackReward/N for each of
// the N tiles visited for the first time. Leaving the playfield gives
// OffFieldPenalty and ends the episode in a terminal state, as does
// visiting every tile.
//
// The Starter of a CarRacing environment samples a 2-dimensional
// starting state: the lateral offset from the centre of the first tile
// and the heading deviation from the track direction.
type CarRacing struct {
	environment.Starter
	environment.Ender

	world box2d.B2World
	car   *box2d.B2Body
	track *track
	rng   *rand.Rand

	actionBounds []r1.Interval
	steer        float64
	discount     float64
	lastStep     timestep.TimeStep

	renderDir string
	frame     int
}

// New returns a new CarRacing environment. The seed determines the
// sequence of generated tracks.
func New(s environment.Starter, e environment.Ender, discount float64,
	seed uint64) (*CarRacing, timestep.TimeStep, error) {
	c := &CarRacing{
		Starter:  s,
		Ender:    e,
		world:    box2d.MakeB2World(box2d.MakeB2Vec2(0, 0)),
		rng:      rand.New(rand.NewSource(seed)),
		discount: discount,
		actionBounds: []r1.Interval{
			{Min: -1, Max: 1},
			{Min: 0, Max: 1},
			{Min: 0, Max: 1},
		},
		renderDir: defaultRenderDir,
	}

	step, err := c.Reset()
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return c, step, nil
}

// NewDefault returns a CarRacing environment with the default starting
// state distribution and a MaxEpisodeSteps step limit
func NewDefault(discount float64, seed uint64) (*CarRacing,
	timestep.TimeStep, error) {
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -1.0, Max: 1.0},
		{Min: -0.1, Max: 0.1},
	}, seed)
	ender := environment.NewStepLimit(MaxEpisodeSteps)

	return New(starter, ender, discount, seed+1)
}

// Reset generates a new track and places the car at its start
func (c *CarRacing) Reset() (timestep.TimeStep, error) {
	c.destroy()

	start := c.Start()
	if start.Len() != 2 {
		return timestep.TimeStep{}, fmt.Errorf("reset: invalid starting "+
			"state dimensions \n\twant(2) \n\thave(%v)", start.Len())
	}
	offset, heading := start.AtVec(0), start.AtVec(1)
	if math.Abs(offset) > TrackHalfWidth {
		return timestep.TimeStep{}, fmt.Errorf("reset: starting offset %v "+
			"is off the track", offset)
	}

	c.track = newTrack(c.rng)
	dx, dy := c.track.direction(0)

	// Car body, placed offset to the left of the first tile
	carDef := box2d.MakeB2BodyDef()
	carDef.Type = 2 // Dynamic body
	carDef.Position = box2d.MakeB2Vec2(c.track.x[0]-dy*offset,
		c.track.y[0]+dx*offset)
	carDef.Angle = c.track.angle[0] + heading
	carDef.LinearDamping = LinearDamping
	carDef.AngularDamping = AngularDamping
	c.car = c.world.CreateBody(&carDef)

	carShape := box2d.NewB2PolygonShape()
	carShape.SetAsBox(CarHalfWidth, CarHalfLength)

	carFix := box2d.MakeB2FixtureDef()
	carFix.Shape = carShape
	carFix.Density = CarDensity
	carFix.Friction = 0.0
	carFix.Restitution = 0.0
	c.car.CreateFixtureFromDef(&carFix)

	c.steer = 0
	c.frame = 0
	c.lastStep = timestep.New(timestep.First, 0, c.discount,
		c.observation(), 0)

	return c.lastStep, nil
}

// destroy removes the car from the world
func (c *CarRacing) destroy() {
	if c.car == nil {
		return
	}
	c.world.DestroyBody(c.car)
	c.car = nil
}

// Step takes one environmental step given action a and returns the next
// timestep and whether or not the episode has ended
func (c *CarRacing) Step(a *mat.VecDense) (timestep.TimeStep, bool, error) {
	if a.Len() != ActionDims {
		return timestep.TimeStep{}, true, fmt.Errorf("step: invalid action "+
			"dimensions \n\twant(%v) \n\thave(%v)", ActionDims, a.Len())
	}
	steer := floatutils.ClipInterval(a.AtVec(0), c.actionBounds[0])
	gas := floatutils.ClipInterval(a.AtVec(1), c.actionBounds[1])
	brake := floatutils.ClipInterval(a.AtVec(2), c.actionBounds[2])
	c.steer = steer

	angle := c.car.GetAngle()
	forward := [2]float64{-math.Sin(angle), math.Cos(angle)}
	right := [2]float64{math.Cos(angle), math.Sin(angle)}
	vel := c.car.GetLinearVelocity()
	vForward := vel.X*forward[0] + vel.Y*forward[1]
	vSide := vel.X*right[0] + vel.Y*right[1]
	mass := c.car.GetMass()

	// Tyre grip cancels most sideways motion
	grip := box2d.MakeB2Vec2(-Grip*mass*vSide*right[0],
		-Grip*mass*vSide*right[1])
	c.car.ApplyLinearImpulse(grip, c.car.GetWorldCenter(), true)

	// Engine and brakes; braking never reverses the car
	drive := mass * (EngineAccel*gas -
		BrakeAccel*brake*floatutils.Clip(vForward, -1, 1))
	c.car.ApplyForceToCenter(box2d.MakeB2Vec2(drive*forward[0],
		drive*forward[1]), true)

	// Steering turns faster with speed, up to SteerRate
	desired := -steer * SteerRate * floatutils.Clip(vForward/SteerSpeed, -1, 1)
	c.car.ApplyAngularImpulse(
		c.car.GetInertia()*(desired-c.car.GetAngularVelocity()), true)

	c.world.Step(1.0/FPS, velocityIters, positionIters)

	// Rewards
	reward := -StepPenalty
	pos := c.car.GetPosition()
	tile, dist, _ := c.track.nearest(pos.X, pos.Y)
	if dist <= TrackHalfWidth && c.track.visit(tile) {
		reward += TrackReward / float64(c.track.Len())
	}

	t := timestep.New(timestep.Mid, reward, c.discount, c.observation(),
		c.lastStep.Number+1)

	if math.Abs(pos.X) > PlayField || math.Abs(pos.Y) > PlayField {
		t.Reward = OffFieldPenalty
		t.End(timestep.Terminal)
	} else if c.track.complete() {
		t.End(timestep.Terminal)
	} else {
		c.End(&t)
	}
	c.lastStep = t

	return t, t.Last(), nil
}

// observation computes the observation of the current state
func (c *CarRacing) observation() *mat.VecDense {
	pos := c.car.GetPosition()
	vel := c.car.GetLinearVelocity()
	angle := c.car.GetAngle()
	forward := [2]float64{-math.Sin(angle), math.Cos(angle)}
	right := [2]float64{math.Cos(angle), math.Sin(angle)}

	tile, _, offset := c.track.nearest(pos.X, pos.Y)
	headingErr := floatutils.Wrap(angle-c.track.angle[tile], -math.Pi,
		math.Pi)

	obs := make([]float64, 0, ObservationDims)
	obs = append(obs,
		(vel.X*forward[0]+vel.Y*forward[1])/speedScale,
		(vel.X*right[0]+vel.Y*right[1])/speedScale,
		c.car.GetAngularVelocity(),
		c.steer,
		offset/TrackHalfWidth,
		headingErr,
	)

	for k := 1; k <= Lookahead; k++ {
		j := (tile + k*LookaheadStride) % c.track.Len()
		rx, ry := c.track.x[j]-pos.X, c.track.y[j]-pos.Y
		obs = append(obs,
			(rx*right[0]+ry*right[1])/lookaheadScale,
			(rx*forward[0]+ry*forward[1])/lookaheadScale,
		)
	}

	return mat.NewVecDense(ObservationDims, obs)
}

// CurrentTimeStep returns the current timestep in the environment
func (c *CarRacing) CurrentTimeStep() timestep.TimeStep {
	return c.lastStep
}

// TilesVisited returns the number of visited tiles and the total number
// of tiles in the current track
func (c *CarRacing) TilesVisited() (int, int) {
	return c.track.count, c.track.Len()
}

// DiscountSpec returns the discount specification of the environment
func (c *CarRacing) DiscountSpec() environment.Spec {
	bound := []float64{c.discount}
	return environment.NewSpec(environment.Discount, bound, bound)
}

// ObservationSpec returns the observation specification of the
// environment. Observations are unbounded.
func (c *CarRacing) ObservationSpec() environment.Spec {
	return environment.NewUnboundedSpec(environment.Observation,
		ObservationDims)
}

// ActionSpec returns the action specification of the environment
func (c *CarRacing) ActionSpec() environment.Spec {
	low, high := make([]float64, ActionDims), make([]float64, ActionDims)
	for i, b := range c.actionBounds {
		low[i], high[i] = b.Min, b.Max
	}
	return environment.NewSpec(environment.Action, low, high)
}

// Close releases the Box2D bodies of the environment
func (c *CarRacing) Close() error {
	c.destroy()
	return nil
}

// String returns the string representation of the environment
func (c *CarRacing) String() string {
	pos := c.car.GetPosition()
	visited, total := c.TilesVisited()
	return fmt.Sprintf("CarRacing  |  x: %.2f  |  y: %.2f  |  tiles: %v/%v",
		pos.X, pos.Y, visited, total)
}
