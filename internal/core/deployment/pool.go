package deployment

import (
	"fmt"
	"strconv"
	"strings"
)

// Pool is the fixed ordered sequence of host ports, one per slot. Its length
// is the number of slots. It is configuration, never persisted.
type Pool []int

// ParsePool parses a comma separated port list such as "5000,5001,5002".
// Ports must be distinct integers in 1..65535 and at least one is required.
func ParsePool(s string) (Pool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: port pool is empty", ErrValidation)
	}
	parts := strings.Split(s, ",")
	ports := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		port, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid port %q in pool", ErrValidation, part)
		}
		ports = append(ports, port)
	}
	return NewPool(ports)
}

// NewPool validates ports and returns them as a Pool.
func NewPool(ports []int) (Pool, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("%w: port pool is empty", ErrValidation)
	}
	seen := make(map[int]bool, len(ports))
	pool := make(Pool, 0, len(ports))
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: port %d out of range", ErrValidation, port)
		}
		if seen[port] {
			return nil, fmt.Errorf("%w: port %d listed twice in pool", ErrValidation, port)
		}
		seen[port] = true
		pool = append(pool, port)
	}
	return pool, nil
}

// Size returns the number of slots.
func (p Pool) Size() int {
	return len(p)
}

// IndexOf returns the slot index of port, or -1.
func (p Pool) IndexOf(port int) int {
	for i, candidate := range p {
		if candidate == port {
			return i
		}
	}
	return -1
}

// String renders the pool in the same comma separated form ParsePool reads.
func (p Pool) String() string {
	parts := make([]string, len(p))
	for i, port := range p {
		parts[i] = strconv.Itoa(port)
	}
	return strings.Join(parts, ",")
}
