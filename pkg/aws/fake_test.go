package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"
)

// fakeEC2 implements EC2API with canned describe responses and records
// every mutating call it receives.
type fakeEC2 struct {
	instances      []types.Instance
	natGateways    []types.NatGateway
	addresses      []types.Address
	vpcs           []types.Vpc
	securityGroups []types.SecurityGroup
	keyPairs       []types.KeyPairInfo

	internetGateways []types.InternetGateway
	subnets          []types.Subnet
	routeTables      []types.RouteTable

	describeErr error

	// filters records the filter set each describe call received, keyed
	// by operation name
	filters map[string][]types.Filter

	mutations []string
	deleteErr map[string]error
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{
		filters:   map[string][]types.Filter{},
		deleteErr: map[string]error{},
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.NewFile(0, os.DevNull))
	return log
}

func (f *fakeEC2) mutate(op, id string) error {
	f.mutations = append(f.mutations, op+" "+id)
	return f.deleteErr[id]
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	// Waiter polls by instance ID; report those as terminated
	if len(params.InstanceIds) > 0 {
		var terminated []types.Instance
		for _, id := range params.InstanceIds {
			terminated = append(terminated, types.Instance{
				InstanceId: aws.String(id),
				State:      &types.InstanceState{Name: types.InstanceStateNameTerminated},
			})
		}
		return &ec2.DescribeInstancesOutput{
			Reservations: []types.Reservation{{Instances: terminated}},
		}, nil
	}
	f.filters["describe-instances"] = params.Filters
	return &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: f.instances}},
	}, nil
}

func (f *fakeEC2) DescribeNatGateways(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	f.filters["describe-nat-gateways"] = params.Filter
	return &ec2.DescribeNatGatewaysOutput{NatGateways: f.natGateways}, nil
}

func (f *fakeEC2) DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	f.filters["describe-addresses"] = params.Filters
	return &ec2.DescribeAddressesOutput{Addresses: f.addresses}, nil
}

func (f *fakeEC2) DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	f.filters["describe-vpcs"] = params.Filters
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	f.filters["describe-security-groups"] = params.Filters
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.securityGroups}, nil
}

func (f *fakeEC2) DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	f.filters["describe-key-pairs"] = params.Filters
	return &ec2.DescribeKeyPairsOutput{KeyPairs: f.keyPairs}, nil
}

func (f *fakeEC2) DescribeInternetGateways(ctx context.Context, params *ec2.DescribeInternetGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	return &ec2.DescribeInternetGatewaysOutput{InternetGateways: f.internetGateways}, nil
}

func (f *fakeEC2) DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	return &ec2.DescribeSubnetsOutput{Subnets: f.subnets}, nil
}

func (f *fakeEC2) DescribeRouteTables(ctx context.Context, params *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return &ec2.DescribeRouteTablesOutput{RouteTables: f.routeTables}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	for _, id := range params.InstanceIds {
		if err := f.mutate("terminate-instance", id); err != nil {
			return nil, err
		}
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) DeleteNatGateway(ctx context.Context, params *ec2.DeleteNatGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
	if err := f.mutate("delete-nat-gateway", aws.ToString(params.NatGatewayId)); err != nil {
		return nil, err
	}
	return &ec2.DeleteNatGatewayOutput{}, nil
}

func (f *fakeEC2) ReleaseAddress(ctx context.Context, params *ec2.ReleaseAddressInput, optFns ...func(*ec2.Options)) (*ec2.ReleaseAddressOutput, error) {
	if err := f.mutate("release-address", aws.ToString(params.AllocationId)); err != nil {
		return nil, err
	}
	return &ec2.ReleaseAddressOutput{}, nil
}

func (f *fakeEC2) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	if err := f.mutate("delete-security-group", aws.ToString(params.GroupId)); err != nil {
		return nil, err
	}
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *fakeEC2) DetachInternetGateway(ctx context.Context, params *ec2.DetachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	if err := f.mutate("detach-internet-gateway", aws.ToString(params.InternetGatewayId)); err != nil {
		return nil, err
	}
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DeleteInternetGateway(ctx context.Context, params *ec2.DeleteInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	if err := f.mutate("delete-internet-gateway", aws.ToString(params.InternetGatewayId)); err != nil {
		return nil, err
	}
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DeleteSubnet(ctx context.Context, params *ec2.DeleteSubnetInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	if err := f.mutate("delete-subnet", aws.ToString(params.SubnetId)); err != nil {
		return nil, err
	}
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeEC2) DeleteRouteTable(ctx context.Context, params *ec2.DeleteRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	if err := f.mutate("delete-route-table", aws.ToString(params.RouteTableId)); err != nil {
		return nil, err
	}
	return &ec2.DeleteRouteTableOutput{}, nil
}

func (f *fakeEC2) DeleteVpc(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	if err := f.mutate("delete-vpc", aws.ToString(params.VpcId)); err != nil {
		return nil, err
	}
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeEC2) DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	if err := f.mutate("delete-key-pair", aws.ToString(params.KeyName)); err != nil {
		return nil, err
	}
	return &ec2.DeleteKeyPairOutput{}, nil
}
