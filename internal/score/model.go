package score

import (
	"encoding/json"
	"math"
	"os"

	"github.com/sweeply/sweeply/internal/errors"
)

// Model is a small feed-forward network stored as JSON weights under
// <app-data>/models/SafetyModel.json. ReLU hidden layers, sigmoid output.
// The model is optional; everything works without one.
type Model struct {
	Layers []Layer `json:"layers"`
}

// Layer holds row-major weights (outputs × inputs) and one bias per
// output unit.
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// LoadModel reads model weights from path. A missing file returns
// (nil, nil) so callers can treat the model as simply absent.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO("reading safety model", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Encoding("decoding safety model", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Layers) == 0 {
		return errors.Validation("safety model has no layers")
	}
	for i, l := range m.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Biases) {
			return errors.Validationf("safety model layer %d malformed", i)
		}
	}
	last := m.Layers[len(m.Layers)-1]
	if len(last.Weights) != 1 {
		return errors.Validation("safety model output layer must have one unit")
	}
	return nil
}

// Predict runs the network on the feature vector and returns a
// probability in [0,1].
func (m *Model) Predict(features []float64) (float64, error) {
	x := features
	for i, l := range m.Layers {
		out := make([]float64, len(l.Weights))
		for j, row := range l.Weights {
			if len(row) != len(x) {
				return 0, errors.Validationf("safety model layer %d expects %d inputs, got %d", i, len(row), len(x))
			}
			sum := l.Biases[j]
			for k, w := range row {
				sum += w * x[k]
			}
			if i < len(m.Layers)-1 {
				sum = math.Max(sum, 0)
			}
			out[j] = sum
		}
		x = out
	}
	return 1 / (1 + math.Exp(-x[0])), nil
}
