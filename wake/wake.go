// Package wake starts a stopped backend server when players show up in
// the limbo.
package wake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"
)

// Waker is notified when a player joins. Status is shown in the server
// list so players know the backend is coming up.
type Waker interface {
	Wake(ctx context.Context) error
	Status(ctx context.Context) (string, error)
}

// Nop is the Waker used when waking is disabled.
type Nop struct{}

func (Nop) Wake(context.Context) error             { return nil }
func (Nop) Status(context.Context) (string, error) { return "", nil }

var ErrInstanceNotFound = errors.New("instance not found")

// EC2API is the part of the EC2 client the waker uses.
type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
}

const (
	stateKey = "state"
	startKey = "start"
)

// EC2Waker starts one EC2 instance. Describe results are cached for
// StatusTTL and start calls are spaced by at least Cooldown.
type EC2Waker struct {
	client     EC2API
	instanceID string
	cooldown   time.Duration
	statusTTL  time.Duration

	cache *cache
	log   *zap.SugaredLogger
}

type EC2Options struct {
	InstanceID string
	Cooldown   time.Duration
	StatusTTL  time.Duration
}

// NewEC2Waker builds the client from an AWS configuration, usually one
// loaded with config.LoadDefaultConfig.
func NewEC2Waker(cfg aws.Config, opts EC2Options, log *zap.SugaredLogger) *EC2Waker {
	return NewEC2WakerWithClient(ec2.NewFromConfig(cfg), opts, log)
}

func NewEC2WakerWithClient(client EC2API, opts EC2Options, log *zap.SugaredLogger) *EC2Waker {
	return &EC2Waker{
		client:     client,
		instanceID: opts.InstanceID,
		cooldown:   opts.Cooldown,
		statusTTL:  opts.StatusTTL,
		cache:      newCache(),
		log:        log,
	}
}

// Status returns the instance state name, e.g. "stopped" or "running".
func (w *EC2Waker) Status(ctx context.Context) (string, error) {
	if v, ok := w.cache.get(stateKey); ok {
		return v.(string), nil
	}

	out, err := w.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{w.instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", w.instanceID, err)
	}

	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) != w.instanceID || inst.State == nil {
				continue
			}
			state := string(inst.State.Name)
			if w.statusTTL > 0 {
				w.cache.put(stateKey, state, w.statusTTL)
			}
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInstanceNotFound, w.instanceID)
}

// Wake starts the instance unless it is already up or a start was
// requested within the cooldown.
func (w *EC2Waker) Wake(ctx context.Context) error {
	state, err := w.Status(ctx)
	if err != nil {
		return err
	}
	switch types.InstanceStateName(state) {
	case types.InstanceStateNameRunning, types.InstanceStateNamePending:
		return nil
	}

	if w.cooldown > 0 && !w.cache.add(startKey, time.Now(), w.cooldown) {
		w.log.Debugw("start already requested", "instance", w.instanceID)
		return nil
	}

	out, err := w.client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{w.instanceID},
	})
	if err != nil {
		w.cache.delete(startKey)
		return fmt.Errorf("start %s: %w", w.instanceID, err)
	}

	w.cache.delete(stateKey)
	for _, change := range out.StartingInstances {
		if change.CurrentState != nil {
			w.log.Infow("starting backend instance",
				"instance", aws.ToString(change.InstanceId),
				"state", change.CurrentState.Name,
			)
		}
	}
	return nil
}
