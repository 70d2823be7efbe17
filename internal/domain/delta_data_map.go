package domain

type KeyVectorType uint32

const (
	TagKeyVector KeyVectorType = iota
	CalKeyVector
)

func (t KeyVectorType) String() string {
	switch t {
	case TagKeyVector:
		return "tag"
	case CalKeyVector:
		return "cal"
	default:
		return "unknown"
	}
}

type ModuleCalData struct {
	InstanceID uint32 `json:"instance_id"`
	ParamID    uint32 `json:"param_id"`
	Payload    []byte `json:"payload"`
}

func (m ModuleCalData) ParamSize() uint32 {
	return uint32(len(m.Payload))
}

type PersistenceData struct {
	ModuleCals []ModuleCalData `json:"module_cals"`
}

type SubgraphData struct {
	SubgraphID uint32          `json:"subgraph_id"`
	Global     PersistenceData `json:"global"`
	NonGlobal  PersistenceData `json:"non_global"`
}

// DeltaDataMap binds calibration data to one key vector.
type DeltaDataMap struct {
	KeyVectorType KeyVectorType  `json:"key_vector_type"`
	KeyVector     KeyVector      `json:"key_vector"`
	MapSize       uint32         `json:"map_size"`
	Subgraphs     []SubgraphData `json:"subgraphs"`
}

func (m *DeltaDataMap) SubgraphCount() uint32 {
	return uint32(len(m.Subgraphs))
}

// Release drops the subgraph payloads so a cleared heap does not pin them.
func (m *DeltaDataMap) Release() {
	m.Subgraphs = nil
	m.MapSize = 0
}

func (m *DeltaDataMap) Subgraph(id uint32) *SubgraphData {
	for i := range m.Subgraphs {
		if m.Subgraphs[i].SubgraphID == id {
			return &m.Subgraphs[i]
		}
	}
	return nil
}

// Merge folds other into m: matching (instance, param) entries are replaced,
// unknown subgraphs and params are appended.
func (m *DeltaDataMap) Merge(other *DeltaDataMap) {
	for _, sg := range other.Subgraphs {
		existing := m.Subgraph(sg.SubgraphID)
		if existing == nil {
			m.Subgraphs = append(m.Subgraphs, sg)
			continue
		}
		existing.Global.merge(sg.Global)
		existing.NonGlobal.merge(sg.NonGlobal)
	}
}

func (p *PersistenceData) merge(other PersistenceData) {
	for _, cal := range other.ModuleCals {
		replaced := false
		for i := range p.ModuleCals {
			if p.ModuleCals[i].InstanceID == cal.InstanceID && p.ModuleCals[i].ParamID == cal.ParamID {
				p.ModuleCals[i] = cal
				replaced = true
				break
			}
		}
		if !replaced {
			p.ModuleCals = append(p.ModuleCals, cal)
		}
	}
}

// Clone returns a deep copy that shares no slices with m.
func (m *DeltaDataMap) Clone() *DeltaDataMap {
	if m == nil {
		return nil
	}
	c := &DeltaDataMap{
		KeyVectorType: m.KeyVectorType,
		KeyVector:     m.KeyVector.Copy(),
		MapSize:       m.MapSize,
	}
	for _, sg := range m.Subgraphs {
		c.Subgraphs = append(c.Subgraphs, SubgraphData{
			SubgraphID: sg.SubgraphID,
			Global:     sg.Global.clone(),
			NonGlobal:  sg.NonGlobal.clone(),
		})
	}
	return c
}

func (p PersistenceData) clone() PersistenceData {
	var c PersistenceData
	for _, cal := range p.ModuleCals {
		cal.Payload = append([]byte(nil), cal.Payload...)
		c.ModuleCals = append(c.ModuleCals, cal)
	}
	return c
}
