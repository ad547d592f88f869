package report

import (
	"encoding/json"
	"io"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
)

type resultJSON struct {
	*calibration.SweepResult
	Discard int         `json:"discard"`
	Settled [][]float64 `json:"settled"`
}

// JSON writes res as an indented JSON document. Settled holds the readings of
// each point after dropping the first discard.
func JSON(w io.Writer, res *calibration.SweepResult, discard int) error {
	out := resultJSON{SweepResult: res, Discard: discard, Settled: make([][]float64, 0, len(res.Points))}
	for _, p := range res.Points {
		s := p.Settled(discard)
		if s == nil {
			s = []float64{}
		}
		out.Settled = append(out.Settled, s)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
