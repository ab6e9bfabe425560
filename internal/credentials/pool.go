package credentials

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPool is returned when a pool is built without any usable key.
var ErrEmptyPool = errors.New("credential pool is empty")

// Credential is one API key of the classifier pool.
type Credential struct {
	Name   string
	APIKey string
}

// Redacted returns the key safe for logs: only the last four characters survive.
func (c Credential) Redacted() string {
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return "****" + c.APIKey[len(c.APIKey)-4:]
}

// Pool keeps the ordered set of credentials for one run. Order matters: shard i
// is always served by credential i.
type Pool struct {
	creds []Credential
	index map[string]int
}

// NewPool builds a pool from raw keys, naming them key-1..key-N. Blank keys are skipped.
func NewPool(keys []string) (*Pool, error) {
	p := &Pool{index: map[string]int{}}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		p.Register(Credential{Name: fmt.Sprintf("key-%d", len(p.creds)+1), APIKey: key})
	}
	if p.Len() == 0 {
		return nil, ErrEmptyPool
	}
	return p, nil
}

// Register adds or replaces a credential by name.
func (p *Pool) Register(cred Credential) {
	if p.index == nil {
		p.index = map[string]int{}
	}
	if i, ok := p.index[cred.Name]; ok {
		p.creds[i] = cred
		return
	}
	p.index[cred.Name] = len(p.creds)
	p.creds = append(p.creds, cred)
}

// Resolve returns a credential by name or an error if it is absent.
func (p *Pool) Resolve(name string) (Credential, error) {
	if i, ok := p.index[name]; ok {
		return p.creds[i], nil
	}
	return Credential{}, fmt.Errorf("credential %s is not registered", name)
}

// Len is the number of shards the pool can serve.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.creds)
}

// All returns a copy of the credentials in registration order.
func (p *Pool) All() []Credential {
	if p == nil {
		return nil
	}
	out := make([]Credential, len(p.creds))
	copy(out, p.creds)
	return out
}
