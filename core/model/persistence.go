package model

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 具象型はgob.Registerで登録されている必要がある。
//
//	err := model.SaveModel(preprocessor, "artifacts/preprocessor.gob")
func SaveModel(v interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}

	if err := SaveModelToWriter(v, file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。vはポインタであること。
func LoadModel(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(v, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// EncodeState gob-encodes a snapshot struct. Estimators keep their fields
// unexported and implement GobEncoder through it.
func EncodeState(snapshot interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := SaveModelToWriter(snapshot, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeState is the inverse of EncodeState.
func DecodeState(data []byte, snapshot interface{}) error {
	return LoadModelFromReader(snapshot, bytes.NewReader(data))
}

// Artifact is the persisted output of a training run: the winning estimator
// together with its catalog name, held-out score and selected hyperparameters.
type Artifact struct {
	Name   string
	Score  float64
	Params map[string]interface{}
	Model  Regressor
}

// SaveArtifact writes a to path.
func SaveArtifact(a *Artifact, path string) error {
	if a == nil || a.Model == nil {
		return errors.NewValueError("SaveArtifact", "artifact has no model")
	}
	return SaveModel(a, path)
}

// LoadArtifact reads an artifact written by SaveArtifact. The package of the
// stored estimator must be linked into the binary so its gob type is registered.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := LoadModel(&a, path); err != nil {
		return nil, err
	}
	if a.Model == nil {
		return nil, errors.NewValueError("LoadArtifact", "artifact has no model")
	}
	return &a, nil
}
