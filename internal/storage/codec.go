package storage

import (
	"encoding/json"
	"errors"

	"paralogos/internal/model"
	"paralogos/internal/tree"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// treeEnvelope versions a persisted tree payload.
type treeEnvelope struct {
	model.VersionedRecord
	Tree *tree.Tree `json:"tree"`
}

func EncodeRun(r model.Run) ([]byte, error) {
	r.SchemaVersion = CurrentSchemaVersion
	r.CodecVersion = CurrentCodecVersion
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeTree(t *tree.Tree) ([]byte, error) {
	return json.Marshal(treeEnvelope{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		Tree: t,
	})
}

func DecodeTree(data []byte) (*tree.Tree, error) {
	var env treeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if err := checkVersion(env.VersionedRecord); err != nil {
		return nil, err
	}
	if env.Tree == nil {
		return nil, errors.New("tree payload missing")
	}
	return env.Tree, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
