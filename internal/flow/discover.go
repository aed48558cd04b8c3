package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
)

const amgidTagKey = "AMGID"

// DiscoverByAMGID finds the ARNs of every flow tagged with the AMGID, via the
// Resource Groups Tagging API rather than a scan over all flows. Exact tag
// match first; when nothing matches, a second pass compares the tag value
// case-insensitively across all AMGID-tagged flows.
func (v *Validator) DiscoverByAMGID(ctx context.Context, amgid string) ([]string, error) {
	client, err := v.tagging(ctx)
	if err != nil {
		return nil, err
	}

	exact, err := taggedFlows(ctx, client, []string{amgid})
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		arns := make([]string, 0, len(exact))
		for _, m := range exact {
			arns = append(arns, aws.ToString(m.ResourceARN))
		}
		return arns, nil
	}

	tagged, err := taggedFlows(ctx, client, nil)
	if err != nil {
		return nil, err
	}
	var arns []string
	for _, m := range tagged {
		for _, tag := range m.Tags {
			if aws.ToString(tag.Key) == amgidTagKey && strings.EqualFold(aws.ToString(tag.Value), amgid) {
				arns = append(arns, aws.ToString(m.ResourceARN))
				break
			}
		}
	}
	return arns, nil
}

// taggedFlows pages through GetResources for flows carrying the AMGID tag,
// optionally restricted to specific tag values.
func taggedFlows(ctx context.Context, client TaggingAPI, values []string) ([]taggingtypes.ResourceTagMapping, error) {
	filter := taggingtypes.TagFilter{Key: aws.String(amgidTagKey), Values: values}

	var out []taggingtypes.ResourceTagMapping
	var token *string
	for {
		page, err := client.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
			TagFilters:          []taggingtypes.TagFilter{filter},
			ResourceTypeFilters: []string{"mediaconnect:flow"},
			PaginationToken:     token,
		})
		if err != nil {
			return nil, fmt.Errorf("tag lookup: GetResources failed: %w", err)
		}
		out = append(out, page.ResourceTagMappingList...)
		token = page.PaginationToken
		if token == nil || *token == "" {
			break
		}
	}
	return out, nil
}
