package heap

import (
	"ACDB/internal/domain"

	"github.com/pkg/errors"
)

type Command int

const (
	CmdInit Command = iota
	CmdAddDatabase
	CmdRemoveDatabase
	CmdReset
	CmdClearDatabaseHeap
	CmdAddMap
	CmdAddMapUsingHandle
	CmdSetMap
	CmdGetMap
	CmdGetMapList
	CmdRemoveMap
	CmdGetHeapInfo
)

var commandNames = map[Command]string{
	CmdInit:              "init",
	CmdAddDatabase:       "add_database",
	CmdRemoveDatabase:    "remove_database",
	CmdReset:             "reset",
	CmdClearDatabaseHeap: "clear_database_heap",
	CmdAddMap:            "add_map",
	CmdAddMapUsingHandle: "add_map_using_handle",
	CmdSetMap:            "set_map",
	CmdGetMap:            "get_map",
	CmdGetMapList:        "get_map_list",
	CmdRemoveMap:         "remove_map",
	CmdGetHeapInfo:       "get_heap_info",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

type AddDatabaseRequest struct {
	VmID uint32
}

type MapHandleInfo struct {
	Handle domain.HeapHandle
	Map    *domain.DeltaDataMap
}

// Execute routes a command to its typed method. Request and response types
// per command:
//
//	CmdAddDatabase       AddDatabaseRequest   -> *HeapInfo
//	CmdRemoveDatabase    domain.HeapHandle    -> nil
//	CmdClearDatabaseHeap domain.HeapHandle    -> nil
//	CmdAddMap            *domain.DeltaDataMap -> *domain.DeltaDataMap
//	CmdAddMapUsingHandle MapHandleInfo        -> *domain.DeltaDataMap
//	CmdSetMap            MapHandleInfo        -> *domain.DeltaDataMap
//	CmdGetMap            domain.KeyVector     -> *domain.DeltaDataMap
//	CmdGetMapList        nil                  -> []*domain.DeltaDataMap
//	CmdRemoveMap         domain.KeyVector     -> nil
//	CmdGetHeapInfo       nil                  -> []byte
func (m *Manager) Execute(cmd Command, req interface{}) (interface{}, error) {
	switch cmd {
	case CmdInit:
		m.Init()
		return nil, nil
	case CmdReset:
		m.Reset()
		return nil, nil
	case CmdAddDatabase:
		r, ok := req.(AddDatabaseRequest)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		return m.AddDatabase(r.VmID)
	case CmdRemoveDatabase, CmdClearDatabaseHeap:
		handle, ok := req.(domain.HeapHandle)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		if cmd == CmdRemoveDatabase {
			return nil, m.RemoveDatabase(handle)
		}
		return nil, m.ClearDatabaseHeap(handle)
	case CmdAddMap:
		dataMap, ok := req.(*domain.DeltaDataMap)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		return m.AddMap(dataMap)
	case CmdAddMapUsingHandle, CmdSetMap:
		r, ok := req.(MapHandleInfo)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		if cmd == CmdSetMap {
			return m.SetMap(r.Handle, r.Map)
		}
		return m.AddMapUsingHandle(r.Handle, r.Map)
	case CmdGetMap, CmdRemoveMap:
		kv, ok := req.(domain.KeyVector)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		if cmd == CmdRemoveMap {
			return nil, m.RemoveMap(kv)
		}
		return m.LookupCalMap(kv)
	case CmdGetMapList:
		return m.ListMaps()
	case CmdGetHeapInfo:
		return m.GetHeapInfo()
	default:
		return nil, errors.Wrapf(domain.ErrUnsupported, "heap command %d", cmd)
	}
}

func badRequest(cmd Command, req interface{}) error {
	return errors.Wrapf(domain.ErrBadParam, "%s: unexpected request %T", cmd, req)
}
