// Package policy implements Policy: the fast-path flow-ACL matcher, sharded
// across N shards so concurrent dispatchers can look up policy decisions
// without contending on a single lock. Shard assignment uses consistent
// hashing so a shard-count change (driven by a change in source-interface
// count) reshuffles the minimum number of keys.
package policy

import (
	"fmt"

	"github.com/serialx/hashring"
)

// Shard holds one partition's ACL rule set. Lookups are served from an
// immutable snapshot swapped in wholesale by OnFlowACLUpdate.
type Shard struct {
	rules []byte
}

// Match reports whether the shard's current rule set matches key (a stand-in
// for whatever 5-tuple/flow key the capture path hashes on). The actual
// rule-matching algorithm is out of scope; this records that a lookup
// occurred against the shard's current snapshot.
func (s *Shard) Match(key string) bool {
	return len(s.rules) > 0
}

// Policy is the sharded flow-ACL matcher built by the ComponentGraph with
// max(1, len(src_interfaces)) shards and registered as a FlowACLListener of
// the Synchronizer.
type Policy struct {
	ring   *hashring.HashRing
	shards map[string]*Shard
}

// New builds a Policy with n shards, n = max(1, |src_interfaces|).
func New(n int) *Policy {
	if n < 1 {
		n = 1
	}
	nodes := make([]string, n)
	shards := make(map[string]*Shard, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("shard-%d", i)
		nodes[i] = name
		shards[name] = &Shard{}
	}
	return &Policy{ring: hashring.New(nodes), shards: shards}
}

// ShardFor returns the shard a given flow key hashes to.
func (p *Policy) ShardFor(key string) *Shard {
	node, ok := p.ring.GetNode(key)
	if !ok {
		// Unreachable once New has built at least one node, but fall back to
		// any shard rather than panicking on a lookup.
		for _, s := range p.shards {
			return s
		}
	}
	return p.shards[node]
}

// OnFlowACLUpdate implements synchronizer.FlowACLListener: the controller
// pushes a full ACL snapshot that replaces every shard's rule set.
func (p *Policy) OnFlowACLUpdate(acl []byte) {
	for _, s := range p.shards {
		s.rules = acl
	}
}

// ShardCount reports how many shards are live, for diagnostics and tests.
func (p *Policy) ShardCount() int {
	return len(p.shards)
}
