package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

// Credential names resolved from the configuration's secrets.
const (
	CredAccessKeyID     = "aws_access_key_id"
	CredSecretAccessKey = "aws_secret_access_key"
)

const (
	metric    = "UnblendedCost"
	dateShape = "2006-01-02"
)

// Error codes Cost Explorer returns for bad or insufficient credentials.
var authErrorCodes = map[string]bool{
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"AccessDeniedException":       true,
	"ExpiredTokenException":       true,
}

// CostExplorerAPI is the subset of the Cost Explorer client used here.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

type AWSSource struct {
	newClient func(creds vendor.Credentials) CostExplorerAPI
	now       func() time.Time
}

func New(region string) *AWSSource {
	return &AWSSource{
		newClient: func(creds vendor.Credentials) CostExplorerAPI {
			return costexplorer.New(costexplorer.Options{
				Region: region,
				Credentials: awssdk.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
					creds[CredAccessKeyID], creds[CredSecretAccessKey], "",
				)),
			})
		},
		now: time.Now,
	}
}

func (s *AWSSource) Vendor() string {
	return vendor.AWS
}

// MonthlyCosts sums UnblendedCost across services for each month in r.
// Cost Explorer's end date is exclusive and may not lie in the future, so it
// is clamped to tomorrow.
func (s *AWSSource) MonthlyCosts(ctx context.Context, creds vendor.Credentials, r month.Range) ([]costs.Point, error) {
	if err := creds.Require(CredAccessKeyID, CredSecretAccessKey); err != nil {
		return nil, err
	}

	start := r.From.Start()
	end := r.To.Next().Start()
	tomorrow := s.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if end.After(tomorrow) {
		end = tomorrow
	}
	if !start.Before(end) {
		return nil, nil
	}

	client := s.newClient(creds)
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: awssdk.String(start.Format(dateShape)),
			End:   awssdk.String(end.Format(dateShape)),
		},
		Granularity: types.GranularityMonthly,
		Metrics:     []string{metric},
		GroupBy: []types.GroupDefinition{
			{Type: types.GroupDefinitionTypeDimension, Key: awssdk.String("SERVICE")},
		},
	}

	totals := make(map[month.Month]decimal.Decimal)
	var order []month.Month
	for {
		out, err := client.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, classify(err)
		}

		for _, result := range out.ResultsByTime {
			if result.TimePeriod == nil || result.TimePeriod.Start == nil {
				return nil, errors.New("cost explorer result without time period")
			}
			m, err := month.ParseISO(*result.TimePeriod.Start)
			if err != nil {
				return nil, fmt.Errorf("cost explorer period: %w", err)
			}
			sum, err := resultTotal(result)
			if err != nil {
				return nil, err
			}
			if _, seen := totals[m]; !seen {
				order = append(order, m)
			}
			totals[m] = totals[m].Add(sum)
		}

		if out.NextPageToken == nil || *out.NextPageToken == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	month.Sort(order)
	points := make([]costs.Point, 0, len(order))
	for _, m := range order {
		points = append(points, costs.Point{Month: m, Cost: totals[m].Round(2).InexactFloat64()})
	}
	return points, nil
}

// resultTotal sums grouped amounts, falling back to the ungrouped total.
// Credits and refunds arrive as negative amounts and stay signed here.
func resultTotal(result types.ResultByTime) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if len(result.Groups) == 0 {
		if mv, ok := result.Total[metric]; ok {
			return parseAmount(mv)
		}
		return sum, nil
	}
	for _, g := range result.Groups {
		mv, ok := g.Metrics[metric]
		if !ok {
			continue
		}
		amount, err := parseAmount(mv)
		if err != nil {
			return sum, err
		}
		sum = sum.Add(amount)
	}
	return sum, nil
}

func parseAmount(mv types.MetricValue) (decimal.Decimal, error) {
	if mv.Amount == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*mv.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cost explorer amount %q: %w", *mv.Amount, err)
	}
	return d, nil
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %s", vendor.ErrUnauthorized, apiErr.ErrorMessage())
	}
	return fmt.Errorf("cost explorer: %w", err)
}
