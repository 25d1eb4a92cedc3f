package engine

import "math"

type objectiveFunc func(p *Problem, x []float64) float64

var objectives = map[Objective]objectiveFunc{
	ObjectiveSphere:     sphere,
	ObjectiveRastrigin:  rastrigin,
	ObjectiveRosenbrock: rosenbrock,
	ObjectiveAckley:     ackley,
	ObjectiveLinear:     linear,
}

// sphere: f(x) = sum(x_i^2), minimum 0 at the origin.
func sphere(_ *Problem, x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// rastrigin: highly multimodal, minimum 0 at the origin.
func rastrigin(_ *Problem, x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// rosenbrock: narrow curved valley, minimum 0 at (1, ..., 1).
func rosenbrock(_ *Problem, x []float64) float64 {
	var sum float64
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// ackley: nearly flat outer region, minimum 0 at the origin.
func ackley(_ *Problem, x []float64) float64 {
	n := float64(len(x))
	var sq, cos float64
	for _, v := range x {
		sq += v * v
		cos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sq/n)) - math.Exp(cos/n) + 20 + math.E
}

// linear: c·x over the box.
func linear(p *Problem, x []float64) float64 {
	return dot(p.Coefficients, x)
}
