package delta

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
	CmdGetVersion
	CmdSave
	CmdEnablePersistence
	CmdIsPersistEnabled
	CmdInitHeap
	CmdUpdateHeap
	CmdDeleteFile
	CmdDeleteAllFiles
	CmdGetFileCount
	CmdSwapDelta
	CmdIsFileAtPath
)

var commandNames = map[Command]string{
	CmdInit:              "init",
	CmdAddDatabase:       "add_database",
	CmdRemoveDatabase:    "remove_database",
	CmdReset:             "reset",
	CmdGetVersion:        "get_version",
	CmdSave:              "save",
	CmdEnablePersistence: "enable_persistence",
	CmdIsPersistEnabled:  "is_persist_enabled",
	CmdInitHeap:          "init_heap",
	CmdUpdateHeap:        "update_heap",
	CmdDeleteFile:        "delete_file",
	CmdDeleteAllFiles:    "delete_all_files",
	CmdGetFileCount:      "get_file_count",
	CmdSwapDelta:         "swap_delta",
	CmdIsFileAtPath:      "is_file_at_path",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

type Version struct {
	Major uint32
	Minor uint32
}

// Execute routes a command to its typed method.
//
//	CmdAddDatabase       FileInfo              -> *DatabaseInfo
//	CmdRemoveDatabase    domain.DeltaHandle    -> nil
//	CmdGetVersion        int (file index)      -> Version
//	CmdEnablePersistence bool                  -> nil
//	CmdIsPersistEnabled  nil                   -> bool
//	CmdInitHeap          *domain.ContextHandle -> nil
//	CmdUpdateHeap        *domain.ContextHandle -> nil
//	CmdDeleteFile        int (file index)      -> nil
//	CmdGetFileCount      nil                   -> int
//	CmdSwapDelta         SwapInfo              -> nil
//	CmdIsFileAtPath      SwapInfo              -> nil
func (m *Manager) Execute(cmd Command, req interface{}) (interface{}, error) {
	switch cmd {
	case CmdInit:
		m.Init()
		return nil, nil
	case CmdReset:
		m.Reset()
		return nil, nil
	case CmdSave:
		return nil, m.Save()
	case CmdDeleteAllFiles:
		return nil, m.DeleteAllFiles()
	case CmdIsPersistEnabled:
		return m.IsPersistEnabled(), nil
	case CmdGetFileCount:
		return m.FileCount(), nil
	case CmdAddDatabase:
		info, ok := req.(FileInfo)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		return m.AddDatabase(info)
	case CmdRemoveDatabase:
		handle, ok := req.(domain.DeltaHandle)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		return nil, m.RemoveDatabase(handle)
	case CmdGetVersion, CmdDeleteFile:
		idx, ok := req.(int)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		if cmd == CmdDeleteFile {
			return nil, m.DeleteFile(idx)
		}
		major, minor, err := m.GetVersion(idx)
		if err != nil {
			return nil, err
		}
		return Version{Major: major, Minor: minor}, nil
	case CmdEnablePersistence:
		enabled, ok := req.(bool)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		m.EnablePersistence(enabled)
		return nil, nil
	case CmdInitHeap, CmdUpdateHeap:
		ctx, ok := req.(*domain.ContextHandle)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		if cmd == CmdUpdateHeap {
			return nil, m.UpdateHeap(ctx)
		}
		return nil, m.InitHeap(ctx)
	case CmdSwapDelta, CmdIsFileAtPath:
		info, ok := req.(SwapInfo)
		if !ok {
			return nil, badRequest(cmd, req)
		}
		if cmd == CmdIsFileAtPath {
			return nil, m.IsFileAtPath(info)
		}
		return nil, m.SwapDelta(info)
	default:
		return nil, errors.Wrapf(domain.ErrUnsupported, "delta command %d", cmd)
	}
}

func badRequest(cmd Command, req interface{}) error {
	return errors.Wrapf(domain.ErrBadParam, "%s: unexpected request %T", cmd, req)
}
