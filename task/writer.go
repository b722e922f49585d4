package task

import "fmt"

// WriterTaskType distinguishes commands sent to a table writer from the
// events it emits back.
type WriterTaskType int32

const (
	CommandAlterTable WriterTaskType = iota + 1
	CommandUpdateTable
	EventCommandComplete
	EventCommandFailed
)

func (w WriterTaskType) String() string {
	switch w {
	case CommandAlterTable:
		return "alter-table"
	case CommandUpdateTable:
		return "update-table"
	case EventCommandComplete:
		return "command-complete"
	case EventCommandFailed:
		return "command-failed"
	default:
		return fmt.Sprintf("WriterTaskType(%d)", int32(w))
	}
}

// IsCommand reports whether w travels on the command pipeline.
func (w WriterTaskType) IsCommand() bool {
	return w == CommandAlterTable || w == CommandUpdateTable
}

// TableWriterTask is a broadcast record: every listener sees every task and
// filters by table identity. Instance correlates an event with the command
// that caused it.
type TableWriterTask struct {
	Type      WriterTaskType
	TableName string
	TableID   int32
	Instance  int64
	// Payload is reused across publishes; copy it out before the cursor is
	// released.
	Payload []byte
	Message string
}

// Of prepares a task, copying payload into the slot's own buffer.
func (t *TableWriterTask) Of(typ WriterTaskType, table string, tableID int32, instance int64, payload []byte) {
	t.Type = typ
	t.TableName = table
	t.TableID = tableID
	t.Instance = instance
	t.Payload = append(t.Payload[:0], payload...)
	t.Message = ""
}

// Matches reports whether t addresses the given table.
func (t *TableWriterTask) Matches(table string, tableID int32) bool {
	return t.TableID == tableID && t.TableName == table
}

// Clear resets the task, keeping the payload buffer's capacity.
func (t *TableWriterTask) Clear() {
	buf := t.Payload[:0]
	*t = TableWriterTask{Payload: buf}
}

// Close drops the payload buffer.
func (t *TableWriterTask) Close() error {
	t.Payload = nil
	return nil
}
