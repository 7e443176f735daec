package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"
)

// Action describes what the executor did (or would do) with a resource
type Action string

const (
	ActionDeleted     Action = "deleted"
	ActionWouldDelete Action = "would delete"
	ActionFailed      Action = "failed"
)

// Result records the outcome of one teardown step
type Result struct {
	Resource TrackedResource
	Action   Action
	Err      error
}

// Executor deletes tracked resources in dependency order. Every deletion
// is best-effort: a failure is recorded and the run continues, since a
// later terraform destroy or manual pass can pick up the leftovers.
type Executor struct {
	ec2 EC2API
	log *logrus.Logger

	// DryRun disables every mutating call and reports would-delete results
	DryRun bool
	// GraceWait is the pause between deleting VPC dependents and the VPC
	// itself, giving AWS time to release ENIs and NAT mappings
	GraceWait time.Duration
	// InstanceWaitTimeout bounds the wait for instance termination
	InstanceWaitTimeout time.Duration

	sleep func(context.Context, time.Duration)
}

// NewExecutor creates an Executor with production wait defaults
func NewExecutor(api EC2API, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{
		ec2:                 api,
		log:                 log,
		GraceWait:           15 * time.Second,
		InstanceWaitTimeout: 5 * time.Minute,
		sleep:               sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Teardown deletes the given resources in the fixed dependency order,
// regardless of input order. It returns one Result per resource.
func (e *Executor) Teardown(ctx context.Context, resources []TrackedResource) []Result {
	SortForTeardown(resources)

	byKind := map[ResourceKind][]TrackedResource{}
	for _, resource := range resources {
		byKind[resource.Kind] = append(byKind[resource.Kind], resource)
	}

	var results []Result
	results = append(results, e.terminateInstances(ctx, byKind[KindInstance])...)
	results = append(results, e.deleteEach(ctx, byKind[KindNatGateway], e.deleteNatGateway)...)
	results = append(results, e.deleteEach(ctx, byKind[KindElasticIP], e.releaseAddress)...)
	results = append(results, e.deleteEach(ctx, byKind[KindSecurityGroup], e.deleteSecurityGroup)...)
	results = append(results, e.deleteVPCs(ctx, byKind[KindVPC])...)
	results = append(results, e.deleteEach(ctx, byKind[KindKeyPair], e.deleteKeyPair)...)
	return results
}

func (e *Executor) record(resource TrackedResource, err error) Result {
	if e.DryRun {
		return Result{Resource: resource, Action: ActionWouldDelete}
	}
	if err != nil {
		e.log.WithError(err).Warnf("failed to delete %s", resource)
		return Result{Resource: resource, Action: ActionFailed, Err: err}
	}
	e.log.Debugf("deleted %s", resource)
	return Result{Resource: resource, Action: ActionDeleted}
}

func (e *Executor) deleteEach(ctx context.Context, resources []TrackedResource, del func(context.Context, TrackedResource) error) []Result {
	var results []Result
	for _, resource := range resources {
		if e.DryRun {
			results = append(results, e.record(resource, nil))
			continue
		}
		results = append(results, e.record(resource, del(ctx, resource)))
	}
	return results
}

// terminateInstances terminates all instances in one call, then blocks
// until they reach a terminal state so dependent deletions can proceed.
func (e *Executor) terminateInstances(ctx context.Context, instances []TrackedResource) []Result {
	if len(instances) == 0 {
		return nil
	}

	var results []Result
	if e.DryRun {
		for _, instance := range instances {
			results = append(results, e.record(instance, nil))
		}
		return results
	}

	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		ids = append(ids, instance.ID)
	}

	_, err := e.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
	if err != nil {
		for _, instance := range instances {
			results = append(results, e.record(instance, fmt.Errorf("failed to terminate: %w", err)))
		}
		return results
	}

	waiter := ec2.NewInstanceTerminatedWaiter(e.ec2)
	waitErr := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids}, e.InstanceWaitTimeout)
	for _, instance := range instances {
		if waitErr != nil {
			results = append(results, e.record(instance, fmt.Errorf("termination not confirmed: %w", waitErr)))
		} else {
			results = append(results, e.record(instance, nil))
		}
	}
	return results
}

func (e *Executor) deleteNatGateway(ctx context.Context, resource TrackedResource) error {
	_, err := e.ec2.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
		NatGatewayId: aws.String(resource.ID),
	})
	return err
}

func (e *Executor) releaseAddress(ctx context.Context, resource TrackedResource) error {
	_, err := e.ec2.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
		AllocationId: aws.String(resource.ID),
	})
	return err
}

func (e *Executor) deleteSecurityGroup(ctx context.Context, resource TrackedResource) error {
	_, err := e.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(resource.ID),
	})
	return err
}

func (e *Executor) deleteKeyPair(ctx context.Context, resource TrackedResource) error {
	_, err := e.ec2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(resource.ID),
	})
	return err
}

// deleteVPCs purges each VPC's remaining internals, waits out the grace
// period, then deletes the VPC itself.
func (e *Executor) deleteVPCs(ctx context.Context, vpcs []TrackedResource) []Result {
	var results []Result
	for _, vpc := range vpcs {
		if e.DryRun {
			results = append(results, e.record(vpc, nil))
			continue
		}

		if err := e.purgeVPCInternals(ctx, vpc.ID); err != nil {
			// Still attempt the VPC delete below; AWS may have cleaned
			// up the dependency on its own
			e.log.WithError(err).Warnf("failed to purge internals of %s", vpc.ID)
		}

		if e.GraceWait > 0 {
			e.log.Debugf("waiting %s for %s dependencies to release", e.GraceWait, vpc.ID)
			e.sleep(ctx, e.GraceWait)
		}

		_, err := e.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpc.ID)})
		results = append(results, e.record(vpc, err))
	}
	return results
}

func (e *Executor) purgeVPCInternals(ctx context.Context, vpcID string) error {
	vpcFilter := types.Filter{Name: aws.String("vpc-id"), Values: []string{vpcID}}

	igws, err := e.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []types.Filter{{Name: aws.String("attachment.vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return fmt.Errorf("failed to describe internet gateways: %w", err)
	}
	for _, igw := range igws.InternetGateways {
		igwID := aws.ToString(igw.InternetGatewayId)
		if _, err := e.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: igw.InternetGatewayId,
			VpcId:             aws.String(vpcID),
		}); err != nil {
			e.log.WithError(err).Warnf("failed to detach internet gateway %s", igwID)
			continue
		}
		if _, err := e.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
			InternetGatewayId: igw.InternetGatewayId,
		}); err != nil {
			e.log.WithError(err).Warnf("failed to delete internet gateway %s", igwID)
		}
	}

	subnets, err := e.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{vpcFilter},
	})
	if err != nil {
		return fmt.Errorf("failed to describe subnets: %w", err)
	}
	for _, subnet := range subnets.Subnets {
		if _, err := e.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: subnet.SubnetId}); err != nil {
			e.log.WithError(err).Warnf("failed to delete subnet %s", aws.ToString(subnet.SubnetId))
		}
	}

	routeTables, err := e.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{vpcFilter},
	})
	if err != nil {
		return fmt.Errorf("failed to describe route tables: %w", err)
	}
	for _, rt := range routeTables.RouteTables {
		if isMainRouteTable(rt) {
			// The main route table is deleted with the VPC
			continue
		}
		if _, err := e.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: rt.RouteTableId}); err != nil {
			e.log.WithError(err).Warnf("failed to delete route table %s", aws.ToString(rt.RouteTableId))
		}
	}

	groups, err := e.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{vpcFilter},
	})
	if err != nil {
		return fmt.Errorf("failed to describe security groups: %w", err)
	}
	for _, sg := range groups.SecurityGroups {
		if aws.ToString(sg.GroupName) == "default" {
			continue
		}
		if _, err := e.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: sg.GroupId}); err != nil {
			e.log.WithError(err).Warnf("failed to delete security group %s", aws.ToString(sg.GroupId))
		}
	}

	return nil
}

func isMainRouteTable(rt types.RouteTable) bool {
	for _, assoc := range rt.Associations {
		if aws.ToBool(assoc.Main) {
			return true
		}
	}
	return false
}
