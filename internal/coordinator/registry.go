package coordinator

import (
	"fmt"

	"github.com/hoangtv/parking-services/internal/camera"
	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/scanner"
)

// LaneSet bundles the running sources and coordinator of one lane.
type LaneSet struct {
	Role        models.LaneRole
	FrontCamera *camera.Source
	RearCamera  *camera.Source
	Scanner     *scanner.Source
	Coordinator *Coordinator
}

// Registry is the explicit owner of all running source handles, keyed
// by lane. Its lifetime is tied to service start and stop; nothing else
// holds ambient references to the workers.
type Registry struct {
	lanes map[models.LaneRole]*LaneSet
}

func NewRegistry() *Registry {
	return &Registry{lanes: make(map[models.LaneRole]*LaneSet)}
}

func (r *Registry) Add(set *LaneSet) {
	r.lanes[set.Role] = set
}

func (r *Registry) Lane(role models.LaneRole) (*LaneSet, bool) {
	set, ok := r.lanes[role]
	return set, ok
}

// StartAll brings up every camera, scanner and coordinator. Sources
// start first so the coordinators never observe unstarted handles.
func (r *Registry) StartAll() error {
	for role, set := range r.lanes {
		if err := set.FrontCamera.Start(); err != nil {
			return fmt.Errorf("lane %s front camera: %w", role, err)
		}
		if err := set.RearCamera.Start(); err != nil {
			return fmt.Errorf("lane %s rear camera: %w", role, err)
		}
		if err := set.Scanner.Start(); err != nil {
			return fmt.Errorf("lane %s scanner: %w", role, err)
		}
		if err := set.Coordinator.Start(); err != nil {
			return fmt.Errorf("lane %s coordinator: %w", role, err)
		}
	}
	return nil
}

// StopAll shuts down coordinators before their sources so no
// transaction is left mid-flight reading stopped cameras.
func (r *Registry) StopAll() {
	for _, set := range r.lanes {
		set.Coordinator.Stop()
		set.Scanner.Stop()
		set.FrontCamera.Stop()
		set.RearCamera.Stop()
	}
}

func (r *Registry) Status(role models.LaneRole) (comm.LaneStatus, error) {
	set, ok := r.lanes[role]
	if !ok {
		return comm.LaneStatus{}, fmt.Errorf("unknown lane %s", role)
	}

	scannerState := "DISCONNECTED"
	if set.Scanner.Connected() {
		scannerState = "CONNECTED"
	}

	return comm.LaneStatus{
		Lane:        string(role),
		FrontCamera: string(set.FrontCamera.Status()),
		RearCamera:  string(set.RearCamera.Status()),
		Scanner:     scannerState,
	}, nil
}

func (r *Registry) Trigger(role models.LaneRole, cardID string) error {
	set, ok := r.lanes[role]
	if !ok {
		return fmt.Errorf("unknown lane %s", role)
	}
	return set.Coordinator.Trigger(cardID)
}

func (r *Registry) AckPayment(role models.LaneRole, txID string) error {
	set, ok := r.lanes[role]
	if !ok {
		return fmt.Errorf("unknown lane %s", role)
	}
	return set.Coordinator.AckPayment(txID)
}
