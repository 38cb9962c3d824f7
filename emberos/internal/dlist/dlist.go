// Package dlist implements the deadline-ordered list shared by the kernel
// timers and the polling synctimer.
//
// Nodes are intrusive: the owner embeds a Node and the list never
// allocates. The list is kept sorted ascending by deadline; nodes with
// equal deadlines stay in insertion order, so only the head has to be
// examined on each tick.
package dlist

import "ember/emberos/clock"

// Node links one entry into a List.
type Node[T any] struct {
	next, prev *Node[T]
	list       *List[T]
	at         clock.Tick

	// Value points back at the owner.
	Value T
}

// Deadline returns the absolute deadline the node was inserted with.
func (n *Node[T]) Deadline() clock.Tick { return n.at }

// Linked reports whether the node is currently on a list.
func (n *Node[T]) Linked() bool { return n.list != nil }

// List is a deadline-ordered doubly linked list.
type List[T any] struct {
	head, tail *Node[T]
	n          int
}

// Len returns the number of linked nodes.
func (l *List[T]) Len() int { return l.n }

// Front returns the earliest node, or nil.
func (l *List[T]) Front() *Node[T] { return l.head }

// Insert links n with the given absolute deadline.
//
// The scan starts at the head and stops at the first node that is due
// strictly later, which keeps ties in insertion order. n must not be linked.
func (l *List[T]) Insert(n *Node[T], at clock.Tick) {
	n.at = at
	n.list = l

	var next *Node[T]
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.at.After(at) {
			next = cur
			break
		}
	}

	if next == nil {
		n.prev = l.tail
		n.next = nil
		if l.tail != nil {
			l.tail.next = n
		} else {
			l.head = n
		}
		l.tail = n
	} else {
		n.next = next
		n.prev = next.prev
		if next.prev != nil {
			next.prev.next = n
		} else {
			l.head = n
		}
		next.prev = n
	}
	l.n++
}

// Remove unlinks n and reports whether it was on this list.
func (l *List[T]) Remove(n *Node[T]) bool {
	if n.list != l {
		return false
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev, n.list = nil, nil, nil
	l.n--
	return true
}

// PopExpired unlinks and returns the head if its deadline is due at now.
func (l *List[T]) PopExpired(now clock.Tick) *Node[T] {
	n := l.head
	if n == nil || !now.Reached(n.at) {
		return nil
	}
	l.Remove(n)
	return n
}

// Each calls fn for every node from earliest to latest until fn returns false.
func (l *List[T]) Each(fn func(*Node[T]) bool) {
	for cur := l.head; cur != nil; cur = cur.next {
		if !fn(cur) {
			return
		}
	}
}

// Sorted reports whether the list satisfies its ordering invariant.
func (l *List[T]) Sorted() bool {
	count := 0
	var prev *Node[T]
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.prev != prev || cur.list != l {
			return false
		}
		if prev != nil && prev.at.After(cur.at) {
			return false
		}
		prev = cur
		count++
	}
	return prev == l.tail && count == l.n
}
