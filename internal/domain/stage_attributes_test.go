package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStageAttributes_Validate(t *testing.T) {
	tests := []struct {
		name    string
		attrs   domain.StageAttributes
		stage   domain.Stage
		wantErr bool
	}{
		{
			name:  "empty bag is valid for any stage",
			attrs: domain.StageAttributes{},
			stage: domain.StagePacking,
		},
		{
			name:  "matching payload",
			attrs: domain.StageAttributes{Coating: &domain.CoatingAttributes{JumboRollNumber: "JR-1"}},
			stage: domain.StageCoating,
		},
		{
			name:  "matching payload and tag",
			attrs: domain.StageAttributes{Stage: domain.StageCutting, Cutting: &domain.CuttingAttributes{PiecesCut: 20}},
			stage: domain.StageCutting,
		},
		{
			name:    "payload of another stage",
			attrs:   domain.StageAttributes{Slitting: &domain.SlittingAttributes{NumberOfSlits: 4}},
			stage:   domain.StageCoating,
			wantErr: true,
		},
		{
			name:    "tag disagrees with payload",
			attrs:   domain.StageAttributes{Stage: domain.StagePacking, Cutting: &domain.CuttingAttributes{}},
			stage:   domain.StageCutting,
			wantErr: true,
		},
		{
			name: "two payloads",
			attrs: domain.StageAttributes{
				Cutting: &domain.CuttingAttributes{},
				Packing: &domain.PackingAttributes{},
			},
			stage:   domain.StageCutting,
			wantErr: true,
		},
		{
			name:    "tag without payload",
			attrs:   domain.StageAttributes{Stage: domain.StageCoating},
			stage:   domain.StageCoating,
			wantErr: true,
		},
		{
			name: "non-positive slit width",
			attrs: domain.StageAttributes{Slitting: &domain.SlittingAttributes{
				SlitWidthsMM: []decimal.Decimal{dec("48"), dec("0")},
			}},
			stage:   domain.StageSlitting,
			wantErr: true,
		},
		{
			name:    "unknown qc outcome",
			attrs:   domain.StageAttributes{Packing: &domain.PackingAttributes{QCOutcome: "maybe"}},
			stage:   domain.StagePacking,
			wantErr: true,
		},
		{
			name:  "qc rework",
			attrs: domain.StageAttributes{Packing: &domain.PackingAttributes{CartonCount: 12, UnitsPerCarton: 36, QCOutcome: domain.QCOutcomeRework}},
			stage: domain.StagePacking,
		},
		{
			name:    "negative pallet count",
			attrs:   domain.StageAttributes{ReadyToDeliver: &domain.ReadyToDeliverAttributes{PalletCount: -1}},
			stage:   domain.StageReadyToDeliver,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.attrs.Validate(tc.stage)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStageAttributes_Normalize(t *testing.T) {
	attrs := domain.StageAttributes{Rewinding: &domain.RewindingAttributes{NumberOfRolls: 6}}
	assert.Equal(t, domain.StageRewinding, attrs.Normalize().Stage)
	assert.Empty(t, attrs.Stage, "Normalize returns a copy")
}

func TestStageAttributes_ValueAndScan(t *testing.T) {
	attrs := domain.StageAttributes{Slitting: &domain.SlittingAttributes{
		ParentRollNumber: "JR-7",
		SlitWidthsMM:     []decimal.Decimal{dec("24"), dec("48")},
		NumberOfSlits:    2,
	}}

	value, err := attrs.Value()
	require.NoError(t, err)
	text, ok := value.(string)
	require.True(t, ok)
	assert.Contains(t, text, `"stage":"slitting"`)

	var scanned domain.StageAttributes
	require.NoError(t, scanned.Scan([]byte(text)))
	assert.Equal(t, domain.StageSlitting, scanned.Stage)
	require.NotNil(t, scanned.Slitting)
	assert.Equal(t, "JR-7", scanned.Slitting.ParentRollNumber)
	require.Len(t, scanned.Slitting.SlitWidthsMM, 2)
	assert.True(t, scanned.Slitting.SlitWidthsMM[1].Equal(dec("48")))
}

func TestStageAttributes_EmptyValues(t *testing.T) {
	value, err := domain.StageAttributes{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)

	var scanned domain.StageAttributes
	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsEmpty())
	require.NoError(t, scanned.Scan("{}"))
	assert.True(t, scanned.IsEmpty())
	require.NoError(t, scanned.Scan([]byte{}))
	assert.True(t, scanned.IsEmpty())

	assert.Error(t, scanned.Scan(42))
	assert.Error(t, scanned.Scan("not json"))
}

func TestStageAttributes_JSON(t *testing.T) {
	payload := `{"packing":{"cartonCount":10,"unitsPerCarton":24,"qcOutcome":"pass","qcInspectorName":"R. Iyer"}}`

	var attrs domain.StageAttributes
	require.NoError(t, json.Unmarshal([]byte(payload), &attrs))
	require.NotNil(t, attrs.Packing)
	assert.Equal(t, domain.QCOutcomePass, attrs.Packing.QCOutcome)
	assert.NoError(t, attrs.Validate(domain.StagePacking))
	assert.Error(t, attrs.Validate(domain.StageCutting))
}
