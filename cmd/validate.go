package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/pipeline"
	"github.com/health-atlas/atlas-cli/internal/source"
)

var (
	validateInput  string
	validateFormat string
	validateSave   bool

	validateFields = map[string]*string{
		model.FieldFullName:      new(string),
		model.FieldNPI:           new(string),
		model.FieldAddress:       new(string),
		model.FieldCity:          new(string),
		model.FieldState:         new(string),
		model.FieldZipCode:       new(string),
		model.FieldPhone:         new(string),
		model.FieldSpecialty:     new(string),
		model.FieldLicenseNumber: new(string),
		model.FieldWebsite:       new(string),
		model.FieldLastUpdated:   new(string),
	}
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a single provider record",
	Long:  "Collects evidence from all five sources, reconciles conflicts, scores confidence, and prints the validation outcome.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		provider, err := resolveProvider()
		if err != nil {
			return err
		}
		if provider.FullName == "" && provider.NPI == "" {
			return eris.New("validate: at least --full-name or --npi is required")
		}

		collectors := source.NewLiveSet(cfg.Sources)
		if cfg.Sources.Offline {
			collectors = source.StubSet()
		}
		pl := pipeline.New(collectors, cfg)

		outcome := pl.Validate(ctx, provider)

		if validateSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}

			record, err := st.SaveValidation(ctx, outcome)
			if err != nil {
				return eris.Wrap(err, "save validation")
			}
			if outcome.RequiresHumanReview {
				if _, err := st.EnqueueReview(ctx, record.ID, outcome.ReviewReason); err != nil {
					return eris.Wrap(err, "enqueue review")
				}
			}
			zap.L().Info("validation persisted",
				zap.String("record_id", record.ID),
				zap.Bool("requires_review", outcome.RequiresHumanReview),
			)
		}

		return writeOutcome(outcome, validateFormat)
	},
}

// resolveProvider builds the input record from --input JSON or field flags.
// Flags override file values so partial corrections are easy to test.
func resolveProvider() (model.NormalizedProvider, error) {
	raw := make(map[string]string)

	if validateInput != "" {
		data, err := os.ReadFile(validateInput)
		if err != nil {
			return model.NormalizedProvider{}, eris.Wrap(err, "validate: read input file")
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return model.NormalizedProvider{}, eris.Wrap(err, "validate: parse input file")
		}
	}

	for field, val := range validateFields {
		if *val != "" {
			raw[field] = *val
		}
	}

	return model.NormalizeProvider(raw), nil
}

func writeOutcome(outcome model.ValidationOutcome, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	case "yaml":
		data, err := yaml.Marshal(outcome)
		if err != nil {
			return eris.Wrap(err, "validate: marshal yaml")
		}
		_, err = os.Stdout.Write(data)
		return err
	case "report":
		fmt.Print(pipeline.FormatReport(outcome))
		return nil
	default:
		return eris.Errorf("validate: unknown format %q (json, yaml, report)", format)
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateInput, "input", "", "JSON file with provider fields")
	validateCmd.Flags().StringVar(&validateFormat, "format", "json", "output format: json, yaml, report")
	validateCmd.Flags().BoolVar(&validateSave, "save", false, "persist the outcome to the store")

	validateCmd.Flags().StringVar(validateFields[model.FieldFullName], "full-name", "", "provider full name")
	validateCmd.Flags().StringVar(validateFields[model.FieldNPI], "npi", "", "10-digit NPI number")
	validateCmd.Flags().StringVar(validateFields[model.FieldAddress], "address", "", "practice street address")
	validateCmd.Flags().StringVar(validateFields[model.FieldCity], "city", "", "practice city")
	validateCmd.Flags().StringVar(validateFields[model.FieldState], "state", "", "practice state code")
	validateCmd.Flags().StringVar(validateFields[model.FieldZipCode], "zip", "", "practice ZIP code")
	validateCmd.Flags().StringVar(validateFields[model.FieldPhone], "phone", "", "practice phone number")
	validateCmd.Flags().StringVar(validateFields[model.FieldSpecialty], "specialty", "", "provider specialty")
	validateCmd.Flags().StringVar(validateFields[model.FieldLicenseNumber], "license", "", "state license number")
	validateCmd.Flags().StringVar(validateFields[model.FieldWebsite], "website", "", "practice website URL")
	validateCmd.Flags().StringVar(validateFields[model.FieldLastUpdated], "last-updated", "", "record last-updated date (YYYY-MM-DD)")

	rootCmd.AddCommand(validateCmd)
}
