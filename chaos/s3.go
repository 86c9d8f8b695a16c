package chaos

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chaossec-io/chaossec/log"
	"github.com/chaossec-io/chaossec/types"
)

// s3API is the slice of the S3 control plane the injector uses.
type s3API interface {
	GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	DeletePublicAccessBlock(ctx context.Context, params *s3.DeletePublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.DeletePublicAccessBlockOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
}

// S3Injector executes S3 public-access experiments. It handles
// make_s3_public and restrict_s3_public directly; actions without a
// dedicated injector run the make_s3_public test instead, with the
// substitution recorded on the result.
type S3Injector struct {
	client s3API
	logger *log.Logger
}

// NewS3Injector creates an injector using the default AWS credential chain.
func NewS3Injector(ctx context.Context, region, profile string, logger *log.Logger) (*S3Injector, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, types.NewFault(types.ErrAdapterUnavailable, "chaos_init", err)
	}
	return &S3Injector{client: s3.NewFromConfig(cfg), logger: logger}, nil
}

// newS3InjectorWithClient wires a pre-built client, for tests.
func newS3InjectorWithClient(client s3API, logger *log.Logger) *S3Injector {
	return &S3Injector{client: client, logger: logger}
}

// Execute implements Injector. Under safety mode the bucket's public
// access block is inspected and reported, nothing is mutated.
func (inj *S3Injector) Execute(ctx context.Context, req ExperimentRequest) (*ExperimentResult, error) {
	if req.Target == "" {
		return nil, fmt.Errorf("chaos: target bucket is required")
	}

	requested := req.Action
	switch req.Action {
	case types.ActionMakeS3Public, types.ActionRestrictS3:
	default:
		req.Action = types.DefaultAction
		inj.logger.Warn("no injector for action, substituting fallback experiment", map[string]any{
			"requested": string(requested),
			"executed":  string(req.Action),
		})
	}

	res, err := inj.run(ctx, req)
	if err != nil {
		return nil, err
	}
	if requested != req.Action {
		res.ExecutedAction = req.Action
		res.Detail = fmt.Sprintf("substituted for %s: %s", requested, res.Detail)
	}
	return res, nil
}

func (inj *S3Injector) run(ctx context.Context, req ExperimentRequest) (*ExperimentResult, error) {
	if req.SafetyMode {
		return inj.simulate(ctx, req)
	}
	return inj.apply(ctx, req)
}

// simulate inspects the current public access block without mutating.
func (inj *S3Injector) simulate(ctx context.Context, req ExperimentRequest) (*ExperimentResult, error) {
	out, err := inj.client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
		Bucket: aws.String(req.Target),
	})

	detail := fmt.Sprintf("simulated %s against %s", req.Action, req.Target)
	if err != nil {
		// Buckets without a block configuration return an error here;
		// that is itself a useful observation, not a failure.
		detail += " (no public access block configured)"
	} else if cfg := out.PublicAccessBlockConfiguration; cfg != nil {
		detail += fmt.Sprintf(" (block_public_acls=%t, block_public_policy=%t)",
			aws.ToBool(cfg.BlockPublicAcls), aws.ToBool(cfg.BlockPublicPolicy))
	}

	inj.logger.Audit(string(req.Action), req.Target, "simulated", map[string]any{"detail": detail})
	return &ExperimentResult{Applied: false, Detail: detail}, nil
}

// apply issues the real mutation.
func (inj *S3Injector) apply(ctx context.Context, req ExperimentRequest) (*ExperimentResult, error) {
	var err error
	switch req.Action {
	case types.ActionMakeS3Public:
		_, err = inj.client.DeletePublicAccessBlock(ctx, &s3.DeletePublicAccessBlockInput{
			Bucket: aws.String(req.Target),
		})
	case types.ActionRestrictS3:
		_, err = inj.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
			Bucket: aws.String(req.Target),
			PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				RestrictPublicBuckets: aws.Bool(true),
			},
		})
	}
	if err != nil {
		inj.logger.Audit(string(req.Action), req.Target, "error", map[string]any{"error": err.Error()})
		return nil, types.WrapAdapterError("chaos_execute", err)
	}

	detail := fmt.Sprintf("applied %s to %s", req.Action, req.Target)
	inj.logger.Audit(string(req.Action), req.Target, "applied", nil)
	return &ExperimentResult{Applied: true, Detail: detail}, nil
}

// Verify S3Injector implements Injector.
var _ Injector = (*S3Injector)(nil)
