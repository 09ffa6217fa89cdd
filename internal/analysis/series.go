package analysis

import "github.com/san-kum/contactsim/internal/sim"

// Series extracts one named column from recorded samples. Unknown names
// return nil.
func Series(samples []sim.Sample, name string) []float64 {
	var get func(sim.Sample) float64
	switch name {
	case "kinetic_energy":
		get = func(s sim.Sample) float64 { return s.KineticEnergy }
	case "max_penetration":
		get = func(s sim.Sample) float64 { return s.MaxPenetration }
	case "contacts":
		get = func(s sim.Sample) float64 { return float64(s.Contacts) }
	case "iterations":
		get = func(s sim.Sample) float64 { return float64(s.Iterations) }
	default:
		return nil
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = get(s)
	}
	return out
}

func SeriesNames() []string {
	return []string{"kinetic_energy", "max_penetration", "contacts", "iterations"}
}
