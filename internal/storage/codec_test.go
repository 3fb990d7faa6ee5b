package storage

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"paralogos/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	want := sampleRun("run-codec", "2026-08-23T09:00:00Z")
	data, err := EncodeRun(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestDecodeRunVersionMismatch(t *testing.T) {
	run := sampleRun("run-old", "2026-08-23T09:00:00Z")
	run.SchemaVersion = CurrentSchemaVersion + 1
	data, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestEncodeRunStampsVersions(t *testing.T) {
	run := sampleRun("run-new", "2026-08-23T09:00:00Z")
	run.VersionedRecord = model.VersionedRecord{}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SchemaVersion != CurrentSchemaVersion || got.CodecVersion != CurrentCodecVersion {
		t.Fatalf("versions = %d/%d", got.SchemaVersion, got.CodecVersion)
	}
}

func TestTreeCodecRoundTrip(t *testing.T) {
	want := sampleTree()
	data, err := EncodeTree(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeTree(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestDecodeTreeRejectsBadPayload(t *testing.T) {
	if _, err := DecodeTree([]byte(`{"schema_version":1,"codec_version":1}`)); err == nil {
		t.Fatal("expected error for missing tree payload")
	}
	if _, err := DecodeTree([]byte(`{"schema_version":9,"codec_version":1,"tree":{}}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestEventKindSurvivesJSON(t *testing.T) {
	tr := sampleTree()
	data, err := EncodeTree(tr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeTree(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Node(got.Root).Kind != model.EventSpeciation {
		t.Fatalf("root kind = %v", got.Node(got.Root).Kind)
	}
}
