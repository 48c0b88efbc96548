package storage

import (
	"encoding/json"
	"errors"

	"evophys/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodePopulationHistory(history []model.PopulationGeneration) ([]byte, error) {
	return json.Marshal(history)
}

func DecodePopulationHistory(data []byte) ([]model.PopulationGeneration, error) {
	var history []model.PopulationGeneration
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeLineageTrajectory(samples []model.LineageSample) ([]byte, error) {
	return json.Marshal(samples)
}

func DecodeLineageTrajectory(data []byte) ([]model.LineageSample, error) {
	var samples []model.LineageSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func EncodeFixations(events []model.FixationEvent) ([]byte, error) {
	return json.Marshal(events)
}

func DecodeFixations(data []byte) ([]model.FixationEvent, error) {
	var events []model.FixationEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	for _, event := range events {
		if err := checkVersion(event.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
