package dto

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/utils"
)

type ModuleCal struct {
	InstanceID uint32 `json:"instance_id"`
	ParamID    uint32 `json:"param_id"`
	Payload    []byte `json:"payload"`
}

type Subgraph struct {
	SubgraphID uint32      `json:"subgraph_id"`
	Global     []ModuleCal `json:"global,omitempty"`
	NonGlobal  []ModuleCal `json:"non_global,omitempty"`
}

type CalibrationMap struct {
	KeyVectorType string           `json:"key_vector_type"`
	KeyString     string           `json:"key_string,omitempty"`
	KeyVector     domain.KeyVector `json:"key_vector"`
	MapSize       uint32           `json:"map_size,omitempty"`
	Subgraphs     []Subgraph       `json:"subgraphs"`
}

type OpenDatabaseRequest struct {
	Path string `json:"path"`
}

type OpenDatabaseResponse struct {
	DatabaseIndex int    `json:"database_index"`
	DeltaPath     string `json:"delta_path,omitempty"`
	DeltaLoaded   bool   `json:"delta_loaded"`
	MapCount      int    `json:"map_count"`
}

type SetCalibrationResponse struct {
	Map   CalibrationMap `json:"map"`
	Saved bool           `json:"saved"`
}

type SaveDeltaResponse struct {
	Saved bool `json:"saved"`
}

type DeltaVersionResponse struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

type PersistenceRequest struct {
	Enabled bool `json:"enabled"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func CalibrationMapFrom(m *domain.DeltaDataMap) CalibrationMap {
	out := CalibrationMap{
		KeyVectorType: m.KeyVectorType.String(),
		KeyVector:     m.KeyVector.Copy(),
		MapSize:       utils.MapSize(m),
	}
	out.KeyString, _ = m.KeyVector.ToString()
	for _, sg := range m.Subgraphs {
		out.Subgraphs = append(out.Subgraphs, Subgraph{
			SubgraphID: sg.SubgraphID,
			Global:     moduleCalsFrom(sg.Global),
			NonGlobal:  moduleCalsFrom(sg.NonGlobal),
		})
	}
	return out
}

func (c CalibrationMap) ToDeltaDataMap() *domain.DeltaDataMap {
	m := &domain.DeltaDataMap{
		KeyVectorType: domain.CalKeyVector,
		KeyVector:     c.KeyVector.Copy(),
	}
	if c.KeyVectorType == domain.TagKeyVector.String() {
		m.KeyVectorType = domain.TagKeyVector
	}
	for _, sg := range c.Subgraphs {
		m.Subgraphs = append(m.Subgraphs, domain.SubgraphData{
			SubgraphID: sg.SubgraphID,
			Global:     persistenceDataFrom(sg.Global),
			NonGlobal:  persistenceDataFrom(sg.NonGlobal),
		})
	}
	m.MapSize = utils.MapSize(m)
	return m
}

func moduleCalsFrom(pd domain.PersistenceData) []ModuleCal {
	var cals []ModuleCal
	for _, cal := range pd.ModuleCals {
		cals = append(cals, ModuleCal{InstanceID: cal.InstanceID, ParamID: cal.ParamID, Payload: cal.Payload})
	}
	return cals
}

func persistenceDataFrom(cals []ModuleCal) domain.PersistenceData {
	var pd domain.PersistenceData
	for _, cal := range cals {
		pd.ModuleCals = append(pd.ModuleCals, domain.ModuleCalData{
			InstanceID: cal.InstanceID,
			ParamID:    cal.ParamID,
			Payload:    cal.Payload,
		})
	}
	return pd
}
