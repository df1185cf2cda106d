package pipeline

import (
	"context"

	"go.uber.org/zap"

	"phenoetl/internal/config"
	"phenoetl/internal/table"
)

// Names used by the seedling phenotype composition.
const (
	FlowFamilyMeans = "family_means"
	FlowAnalysis    = "analysis"

	LowD13CLimit = -30.0
)

// PhenotypeFlows returns the fixed seedling composition reading from the
// named phenotype and environment inputs:
//
//	family_means: filter group != 2, drop plot/block, rename family->fam,
//	              derive low.d13c, mean d13c by fam
//	analysis:     environment, rename family->fam, left join family_means
//	              on fam, drop count, move population and fam to the front
//
// The environment table is the join's left side, so the analysis table has
// one row per environment row in environment order. Its columns start with
// population, fam and then the remaining environment columns, with mean.d13c
// last.
func PhenotypeFlows(phenotype, environment string) []config.Flow {
	return []config.Flow{
		{
			Name:  FlowFamilyMeans,
			Input: phenotype,
			Steps: []config.Transform{
				{Kind: config.StepFilter, Options: config.Options{"column": "group", "exclude": []string{"2"}}},
				{Kind: config.StepDrop, Options: config.Options{"columns": []string{"plot", "block"}}},
				{Kind: config.StepRename, Options: config.Options{"mapping": map[string]string{"family": "fam"}}},
				{Kind: config.StepDeriveThreshold, Options: config.Options{"target": "low.d13c", "source": "d13c", "limit": LowD13CLimit}},
				{Kind: config.StepGroupMean, Options: config.Options{"key": "fam", "value": "d13c", "count_name": "count", "mean_name": "mean.d13c"}},
			},
		},
		{
			Name:  FlowAnalysis,
			Input: environment,
			Steps: []config.Transform{
				{Kind: config.StepRename, Options: config.Options{"mapping": map[string]string{"family": "fam"}}},
				{Kind: config.StepLeftJoin, Options: config.Options{"right": FlowFamilyMeans, "key": "fam"}},
				{Kind: config.StepDrop, Options: config.Options{"columns": []string{"count"}}},
				{Kind: config.StepReorder, Options: config.Options{"columns": []string{"population", "fam"}}},
			},
		},
	}
}

// Analyze runs PhenotypeFlows over in-memory tables and returns the
// analysis table.
func Analyze(ctx context.Context, log *zap.Logger, phenotype, environment *table.Table) (*table.Table, error) {
	flows, err := CompileFlows(PhenotypeFlows("phenotype", "environment"))
	if err != nil {
		return nil, err
	}
	e := &Engine{Logger: log}
	env, err := e.Run(ctx, flows, Env{"phenotype": phenotype, "environment": environment})
	if err != nil {
		return nil, err
	}
	return env[FlowAnalysis], nil
}
