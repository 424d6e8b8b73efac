package script

import (
	"time"

	"github.com/haasonsaas/neobot/internal/capability"
	"github.com/haasonsaas/neobot/pkg/models"
)

// Instance is a live script bound to the message that defined it.
type Instance struct {
	ID        string
	Origin    models.Origin
	Message   models.Message // origin message snapshot, author included
	Enabled   bool
	CreatedAt time.Time

	sandbox *Sandbox
	scope   *capability.Scope
}

// Hooks lists the functions the script declares.
func (i *Instance) Hooks() []string {
	if i.sandbox == nil {
		return nil
	}
	return i.sandbox.Hooks()
}

// Registry holds at most one instance per origin, partitioned by channel.
// It is not safe for concurrent use; Engine serializes access.
type Registry struct {
	partitions map[string]map[string]*Instance
	size       int
}

func NewRegistry() *Registry {
	return &Registry{partitions: make(map[string]map[string]*Instance)}
}

// Get returns the instance at origin.
func (r *Registry) Get(origin models.Origin) (*Instance, bool) {
	inst, ok := r.partitions[origin.ChannelID][origin.MessageID]
	return inst, ok
}

// Put stores inst, replacing whatever sat at its origin.
func (r *Registry) Put(inst *Instance) {
	part, ok := r.partitions[inst.Origin.ChannelID]
	if !ok {
		part = make(map[string]*Instance)
		r.partitions[inst.Origin.ChannelID] = part
	}
	if _, exists := part[inst.Origin.MessageID]; !exists {
		r.size++
	}
	part[inst.Origin.MessageID] = inst
}

// Delete removes and returns the instance at origin.
func (r *Registry) Delete(origin models.Origin) (*Instance, bool) {
	part, ok := r.partitions[origin.ChannelID]
	if !ok {
		return nil, false
	}
	inst, ok := part[origin.MessageID]
	if !ok {
		return nil, false
	}
	delete(part, origin.MessageID)
	if len(part) == 0 {
		delete(r.partitions, origin.ChannelID)
	}
	r.size--
	return inst, true
}

// Partition returns the instances of one channel in no particular order.
func (r *Registry) Partition(channelID string) []*Instance {
	part := r.partitions[channelID]
	if len(part) == 0 {
		return nil
	}
	out := make([]*Instance, 0, len(part))
	for _, inst := range part {
		out = append(out, inst)
	}
	return out
}

func (r *Registry) Len() int { return r.size }
