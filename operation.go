package mockfs

import "strings"

// Operation identifies the kind of filesystem operation an event describes.
type Operation int

const (
	// InvalidOperation is an invalid operation.
	InvalidOperation Operation = iota - 1

	OpCreate         // OpCreate represents file or directory creation.
	OpOpen           // OpOpen represents opening an existing entry.
	OpWrite          // OpWrite represents writing file content.
	OpRead           // OpRead represents reading file content or listing a directory.
	OpDelete         // OpDelete represents removing an entry.
	OpMove           // OpMove represents renaming or moving an entry.
	OpCopy           // OpCopy represents copying a file.
	OpSetAttributes  // OpSetAttributes represents ownership and attribute changes.
	OpSetTimes       // OpSetTimes represents access and modification time changes.
	OpSetPermissions // OpSetPermissions represents permission bit changes.

	// NumOperations is the number of available operations.
	NumOperations
)

// operationNames maps each operation to a human-readable string.
var operationNames = map[Operation]string{
	InvalidOperation: "Invalid",
	OpCreate:         "Create",
	OpOpen:           "Open",
	OpWrite:          "Write",
	OpRead:           "Read",
	OpDelete:         "Delete",
	OpMove:           "Move",
	OpCopy:           "Copy",
	OpSetAttributes:  "SetAttributes",
	OpSetTimes:       "SetTimes",
	OpSetPermissions: "SetPermissions",
}

// IsValid returns true if the operation is valid.
func (op Operation) IsValid() bool {
	return op >= 0 && op < NumOperations
}

// String returns a human-readable string representation of the operation.
func (op Operation) String() string {
	if !op.IsValid() {
		return operationNames[InvalidOperation]
	}

	return operationNames[op]
}

// StringToOperation converts a string to an Operation, ignoring case.
// It returns InvalidOperation if the string does not match a valid operation.
func StringToOperation(s string) Operation {
	for op := Operation(0); op < NumOperations; op++ {
		if strings.EqualFold(operationNames[op], s) {
			return op
		}
	}

	return InvalidOperation
}

// AllOperations returns every valid operation in declaration order.
func AllOperations() []Operation {
	ops := make([]Operation, 0, NumOperations)
	for op := Operation(0); op < NumOperations; op++ {
		ops = append(ops, op)
	}

	return ops
}

// ResourceKind tells whether an operation targets a file or a directory.
type ResourceKind int

const (
	ResourceFile      ResourceKind = iota // ResourceFile is a regular file.
	ResourceDirectory                     // ResourceDirectory is a directory.
)

// String returns "File" or "Directory".
func (r ResourceKind) String() string {
	switch r {
	case ResourceFile:
		return "File"
	case ResourceDirectory:
		return "Directory"
	default:
		return "Invalid"
	}
}

// Phase tells whether an event is raised before or after the operation runs.
type Phase int

const (
	// PhaseBefore events are raised before the operation and may veto it.
	PhaseBefore Phase = iota

	// PhaseAfter events are raised once the operation has completed successfully.
	// They are informational only.
	PhaseAfter
)

// String returns "Before" or "After".
func (p Phase) String() string {
	switch p {
	case PhaseBefore:
		return "Before"
	case PhaseAfter:
		return "After"
	default:
		return "Invalid"
	}
}

// opMask is a bit set of operations. The zero value is the empty set.
type opMask uint32

// maskOf builds a mask from ops. It reports false if any op is invalid.
func maskOf(ops ...Operation) (opMask, bool) {
	var m opMask
	for _, op := range ops {
		if !op.IsValid() {
			return 0, false
		}
		m |= 1 << uint(op)
	}

	return m, true
}

// has reports whether op is in the set.
func (m opMask) has(op Operation) bool {
	return op.IsValid() && m&(1<<uint(op)) != 0
}

// operations lists the members of the set in declaration order.
func (m opMask) operations() []Operation {
	var ops []Operation
	for op := Operation(0); op < NumOperations; op++ {
		if m.has(op) {
			ops = append(ops, op)
		}
	}

	return ops
}
