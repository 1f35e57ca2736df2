package rbac

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// permissionSet is what gets cached per (user, org): the resolved permission
// names plus which group granted each, and the org's permission-version at
// resolution time so a grant/revoke invalidates stale L1 entries without a
// broadcast — the next lookup simply compares versions and treats a mismatch
// as a miss.
type permissionSet struct {
	names     map[string][]uuid.UUID // permission name -> granting group ids
	version   int64
	cachedAt  time.Time
}

type l1Key struct {
	userID uuid.UUID
	orgID  uuid.UUID
}

type l1Entry struct {
	key   l1Key
	value permissionSet
}

const l1Stripes = 32
const l1MaxPerStripe = 512
const l1TTL = 30 * time.Second

// l1Stripe is one lock-striped LRU shard. container/list gives O(1)
// move-to-front on hit and O(1) eviction of the tail on overflow.
type l1Stripe struct {
	mu      sync.Mutex
	ll      *list.List
	byKey   map[l1Key]*list.Element
}

func newL1Stripe() *l1Stripe {
	return &l1Stripe{ll: list.New(), byKey: make(map[l1Key]*list.Element)}
}

func (s *l1Stripe) get(key l1Key) (permissionSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.byKey[key]
	if !ok {
		return permissionSet{}, false
	}
	entry := el.Value.(*l1Entry)
	if time.Since(entry.value.cachedAt) > l1TTL {
		s.ll.Remove(el)
		delete(s.byKey, key)
		return permissionSet{}, false
	}
	s.ll.MoveToFront(el)
	return entry.value, true
}

func (s *l1Stripe) put(key l1Key, value permissionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byKey[key]; ok {
		el.Value.(*l1Entry).value = value
		s.ll.MoveToFront(el)
		return
	}

	el := s.ll.PushFront(&l1Entry{key: key, value: value})
	s.byKey[key] = el

	for s.ll.Len() > l1MaxPerStripe {
		tail := s.ll.Back()
		if tail == nil {
			break
		}
		s.ll.Remove(tail)
		delete(s.byKey, tail.Value.(*l1Entry).key)
	}
}

func (s *l1Stripe) evict(key l1Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byKey[key]; ok {
		s.ll.Remove(el)
		delete(s.byKey, key)
	}
}

// l1Cache is the PDP's in-process permission-set cache, striped to spread
// lock contention across concurrent authorize() calls.
type l1Cache struct {
	stripes [l1Stripes]*l1Stripe
}

func newL1Cache() *l1Cache {
	c := &l1Cache{}
	for i := range c.stripes {
		c.stripes[i] = newL1Stripe()
	}
	return c
}

func (c *l1Cache) stripeFor(key l1Key) *l1Stripe {
	h := uint64(0)
	for _, b := range key.userID {
		h = h*31 + uint64(b)
	}
	for _, b := range key.orgID {
		h = h*31 + uint64(b)
	}
	return c.stripes[h%uint64(len(c.stripes))]
}

func (c *l1Cache) Get(userID, orgID uuid.UUID) (permissionSet, bool) {
	key := l1Key{userID, orgID}
	return c.stripeFor(key).get(key)
}

func (c *l1Cache) Put(userID, orgID uuid.UUID, value permissionSet) {
	key := l1Key{userID, orgID}
	c.stripeFor(key).put(key, value)
}

func (c *l1Cache) Evict(userID, orgID uuid.UUID) {
	key := l1Key{userID, orgID}
	c.stripeFor(key).evict(key)
}
