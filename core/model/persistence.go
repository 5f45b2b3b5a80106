package model

import (
	"io"
	"os"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// SaveWeights は重みを検証してからJSONファイルに保存する
//
// 使用例:
//
//	weights, err := tr.ExportWeights()
//	// ...
//	err = model.SaveWeights(weights, "model.json")
func SaveWeights(weights *ModelWeights, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	if err := WriteWeights(weights, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "close %s", filename)
}

// LoadWeights はJSONファイルから重みを読み込み、妥当性を検証する
func LoadWeights(filename string) (*ModelWeights, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()
	return ReadWeights(file)
}

// WriteWeights は重みをio.Writerに書き出す
func WriteWeights(weights *ModelWeights, w io.Writer) error {
	if weights == nil {
		return errors.NewValidationError("weights", "is required", nil)
	}
	if err := weights.Validate(); err != nil {
		return err
	}
	data, err := weights.ToJSON()
	if err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to write weights")
	}
	return nil
}

// ReadWeights はio.Readerから重みを読み込む
func ReadWeights(r io.Reader) (*ModelWeights, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights")
	}
	var weights ModelWeights
	if err := weights.FromJSON(data); err != nil {
		return nil, errors.Wrap(err, "failed to decode weights")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &weights, nil
}
