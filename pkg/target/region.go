package target

import (
	"fmt"
	"strconv"

	"github.com/docker/go-units"
)

// Address is a virtual address in the target process.
type Address uintptr

func (a Address) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Word is a native machine word.
type Word uint

// WordSize is the size of Word in bytes.
const WordSize = strconv.IntSize / 8

// RegionKind 区分栈和堆
type RegionKind uint8

const (
	Stack RegionKind = iota
	Heap
)

func (k RegionKind) String() string {
	switch k {
	case Stack:
		return "stack"
	case Heap:
		return "heap"
	}
	return "unknown"
}

// tag is the bracketed suffix of the maps entry producing this kind.
func (k RegionKind) tag() string {
	return "[" + k.String() + "]"
}

// Region 进程地址空间中的一段连续区域, Start < End
type Region struct {
	Kind  RegionKind
	Start Address
	End   Address
}

// Size 区域大小（字节）
func (r Region) Size() uint64 {
	return uint64(r.End - r.Start)
}

// Contains reports whether addr lies inside [Start, End).
func (r Region) Contains(addr Address) bool {
	return addr >= r.Start && addr < r.End
}

func (r Region) String() string {
	return fmt.Sprintf("%s:\t%s\t[%s - %s]", r.Kind, units.BytesSize(float64(r.Size())), r.Start, r.End)
}

// ParseWord parses a decimal integer into a Word. Negative values are
// stored in two's complement.
func ParseWord(str string) (Word, error) {
	if v, err := strconv.ParseInt(str, 10, strconv.IntSize); err == nil {
		return Word(v), nil
	}
	v, err := strconv.ParseUint(str, 10, strconv.IntSize)
	if err != nil {
		return 0, err
	}
	return Word(v), nil
}
