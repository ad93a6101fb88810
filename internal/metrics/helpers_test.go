package metrics

import "ferroci/pkg/contracts/domain"

// table builds a sample with potentials 0, 0.1, 0.2, ... and the given currents
func table(name string, currents ...float64) *domain.SampleTable {
	points := make([]domain.Point, len(currents))
	for i, c := range currents {
		points[i] = domain.Point{Potential: 0.1 * float64(i), Current: c}
	}
	return domain.NewSampleTable(name, points, nil)
}

func tableXY(name string, xy ...float64) *domain.SampleTable {
	points := make([]domain.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		points = append(points, domain.Point{Potential: xy[i], Current: xy[i+1]})
	}
	return domain.NewSampleTable(name, points, nil)
}
