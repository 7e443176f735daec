package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"
)

// ResourceKind identifies the type of a tracked AWS resource
type ResourceKind string

const (
	KindInstance      ResourceKind = "instance"
	KindNatGateway    ResourceKind = "nat-gateway"
	KindElasticIP     ResourceKind = "elastic-ip"
	KindVPC           ResourceKind = "vpc"
	KindSecurityGroup ResourceKind = "security-group"
	KindKeyPair       ResourceKind = "key-pair"
)

// kindOrder is the fixed teardown order. Dependencies before dependents:
// instances hold ENIs in subnets, NAT gateways hold elastic IPs, security
// groups reference each other, the VPC goes last before key pairs.
var kindOrder = map[ResourceKind]int{
	KindInstance:      0,
	KindNatGateway:    1,
	KindElasticIP:     2,
	KindSecurityGroup: 3,
	KindVPC:           4,
	KindKeyPair:       5,
}

// TrackedResource is a single project-tagged resource found in AWS
type TrackedResource struct {
	Kind    ResourceKind
	ID      string
	NameTag string
	State   string
}

func (r TrackedResource) String() string {
	if r.NameTag != "" {
		return fmt.Sprintf("%s %s (%s)", r.Kind, r.ID, r.NameTag)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.ID)
}

// Scanner discovers project resources by Name-tag prefix
type Scanner struct {
	ec2    EC2API
	prefix string
	log    *logrus.Logger
}

// NewScanner creates a Scanner for resources tagged <prefix>*
func NewScanner(api EC2API, prefix string, log *logrus.Logger) *Scanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scanner{ec2: api, prefix: prefix, log: log}
}

func (s *Scanner) nameFilter() types.Filter {
	return types.Filter{
		Name:   aws.String("tag:Name"),
		Values: []string{s.prefix + "*"},
	}
}

func nameTag(tags []types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

// Scan returns every project-tagged resource across all tracked kinds,
// sorted in teardown order. Read-only.
func (s *Scanner) Scan(ctx context.Context) ([]TrackedResource, error) {
	var found []TrackedResource

	scans := []func(context.Context) ([]TrackedResource, error){
		s.scanInstances,
		s.scanNatGateways,
		s.scanElasticIPs,
		s.scanSecurityGroups,
		s.scanVPCs,
		s.scanKeyPairs,
	}
	for _, scan := range scans {
		resources, err := scan(ctx)
		if err != nil {
			return nil, err
		}
		found = append(found, resources...)
	}

	SortForTeardown(found)
	return found, nil
}

func (s *Scanner) scanInstances(ctx context.Context) ([]TrackedResource, error) {
	out, err := s.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			s.nameFilter(),
			// Terminated instances linger in API responses for up to an hour
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}

	var resources []TrackedResource
	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			resources = append(resources, TrackedResource{
				Kind:    KindInstance,
				ID:      aws.ToString(instance.InstanceId),
				NameTag: nameTag(instance.Tags),
				State:   string(instance.State.Name),
			})
		}
	}
	s.log.Debugf("scan: %d instances with prefix %s", len(resources), s.prefix)
	return resources, nil
}

func (s *Scanner) scanNatGateways(ctx context.Context) ([]TrackedResource, error) {
	out, err := s.ec2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []types.Filter{
			s.nameFilter(),
			{Name: aws.String("state"), Values: []string{"pending", "available", "deleting"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe NAT gateways: %w", err)
	}

	var resources []TrackedResource
	for _, gw := range out.NatGateways {
		resources = append(resources, TrackedResource{
			Kind:    KindNatGateway,
			ID:      aws.ToString(gw.NatGatewayId),
			NameTag: nameTag(gw.Tags),
			State:   string(gw.State),
		})
	}
	s.log.Debugf("scan: %d NAT gateways with prefix %s", len(resources), s.prefix)
	return resources, nil
}

func (s *Scanner) scanElasticIPs(ctx context.Context) ([]TrackedResource, error) {
	out, err := s.ec2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		Filters: []types.Filter{s.nameFilter()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe addresses: %w", err)
	}

	var resources []TrackedResource
	for _, addr := range out.Addresses {
		state := "allocated"
		if addr.AssociationId != nil {
			state = "associated"
		}
		resources = append(resources, TrackedResource{
			Kind:    KindElasticIP,
			ID:      aws.ToString(addr.AllocationId),
			NameTag: nameTag(addr.Tags),
			State:   state,
		})
	}
	s.log.Debugf("scan: %d elastic IPs with prefix %s", len(resources), s.prefix)
	return resources, nil
}

func (s *Scanner) scanSecurityGroups(ctx context.Context) ([]TrackedResource, error) {
	out, err := s.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{s.nameFilter()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe security groups: %w", err)
	}

	var resources []TrackedResource
	for _, sg := range out.SecurityGroups {
		resources = append(resources, TrackedResource{
			Kind:    KindSecurityGroup,
			ID:      aws.ToString(sg.GroupId),
			NameTag: nameTag(sg.Tags),
			State:   aws.ToString(sg.GroupName),
		})
	}
	s.log.Debugf("scan: %d security groups with prefix %s", len(resources), s.prefix)
	return resources, nil
}

func (s *Scanner) scanVPCs(ctx context.Context) ([]TrackedResource, error) {
	out, err := s.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []types.Filter{s.nameFilter()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w", err)
	}

	var resources []TrackedResource
	for _, vpc := range out.Vpcs {
		resources = append(resources, TrackedResource{
			Kind:    KindVPC,
			ID:      aws.ToString(vpc.VpcId),
			NameTag: nameTag(vpc.Tags),
			State:   string(vpc.State),
		})
	}
	s.log.Debugf("scan: %d VPCs with prefix %s", len(resources), s.prefix)
	return resources, nil
}

// Key pairs have no Name tag by default, so match on key-name instead.
func (s *Scanner) scanKeyPairs(ctx context.Context) ([]TrackedResource, error) {
	out, err := s.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: []types.Filter{
			{Name: aws.String("key-name"), Values: []string{s.prefix + "*"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe key pairs: %w", err)
	}

	var resources []TrackedResource
	for _, kp := range out.KeyPairs {
		resources = append(resources, TrackedResource{
			Kind:    KindKeyPair,
			ID:      aws.ToString(kp.KeyName),
			NameTag: aws.ToString(kp.KeyName),
			State:   "available",
		})
	}
	s.log.Debugf("scan: %d key pairs with prefix %s", len(resources), s.prefix)
	return resources, nil
}

// Orphans returns the resources not referenced by any ID in ownedIDs.
// Key pairs are matched by name since Terraform stores their key name
// as the resource ID.
func Orphans(found []TrackedResource, ownedIDs map[string]struct{}) []TrackedResource {
	var orphans []TrackedResource
	for _, resource := range found {
		if _, owned := ownedIDs[resource.ID]; owned {
			continue
		}
		orphans = append(orphans, resource)
	}
	SortForTeardown(orphans)
	return orphans
}

// SortForTeardown orders resources by teardown dependency order, then by
// ID for deterministic output.
func SortForTeardown(resources []TrackedResource) {
	sort.SliceStable(resources, func(i, j int) bool {
		if kindOrder[resources[i].Kind] != kindOrder[resources[j].Kind] {
			return kindOrder[resources[i].Kind] < kindOrder[resources[j].Kind]
		}
		return strings.Compare(resources[i].ID, resources[j].ID) < 0
	})
}
