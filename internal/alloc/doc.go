// Package alloc hands out byte ranges inside a linear address space.
//
// Two places need that: the span arena, which carves typed spans out of
// its pages for the duration of one step, and the file transport, which
// places block records at offsets in an append-only data file.
//
// # Allocator
//
// [Allocator] is safe for concurrent use and provides:
//
//   - Append allocation at the current end offset.
//   - Aligned allocation (spans are aligned to their element size).
//   - First-fit reuse of ranges returned with [Allocator.Free].
//   - Live-range tracking and overlap validation for tests.
//
// # Usage
//
//	a := alloc.New(0)
//	off := a.AllocAligned(64, 8)
//	a.Free(off, 64)
//	a.Reset() // every range handed out so far becomes invalid
package alloc
