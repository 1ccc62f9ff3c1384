package lease

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

const (
	leaseSegment = "lease"
	infoSegment  = "info"
	lockSegment  = "lock"
)

// ID returns the document key of the lease governing leaseToken.
//
// Tokens may contain characters that are not valid in KV keys (EPK tokens
// such as "-3F"), so the key carries a hash of the token instead.
func ID(prefix, leaseToken string) string {
	return fmt.Sprintf("%s.%s.%016x", prefix, leaseSegment, xxh3.HashString(leaseToken))
}

// Prefix returns the key prefix shared by every lease document under prefix.
func Prefix(prefix string) string {
	return prefix + "." + leaseSegment + "."
}

func infoKey(prefix string) string {
	return prefix + "." + infoSegment
}

func lockKey(prefix string) string {
	return prefix + "." + lockSegment
}
