package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// StageAttributes carries the stage-specific data captured with a production entry.
// Exactly one payload is set and Stage names which one.
type StageAttributes struct {
	Stage          Stage                     `json:"stage,omitempty"`
	Coating        *CoatingAttributes        `json:"coating,omitempty"`
	Slitting       *SlittingAttributes       `json:"slitting,omitempty"`
	Rewinding      *RewindingAttributes      `json:"rewinding,omitempty"`
	Cutting        *CuttingAttributes        `json:"cutting,omitempty"`
	Packing        *PackingAttributes        `json:"packing,omitempty"`
	ReadyToDeliver *ReadyToDeliverAttributes `json:"readyToDeliver,omitempty"`
}

// CoatingAttributes describes the jumbo roll produced by a coating batch
type CoatingAttributes struct {
	JumboRollNumber string          `json:"jumboRollNumber"`
	WidthMM         decimal.Decimal `json:"widthMm"`
	LengthM         decimal.Decimal `json:"lengthM"`
	CoatingGSM      decimal.Decimal `json:"coatingGsm"`
	AdhesiveType    string          `json:"adhesiveType,omitempty"`
}

// SlittingAttributes describes how a parent roll was slit
type SlittingAttributes struct {
	ParentRollNumber string            `json:"parentRollNumber"`
	SlitWidthsMM     []decimal.Decimal `json:"slitWidthsMm"`
	NumberOfSlits    int               `json:"numberOfSlits"`
}

// RewindingAttributes describes rolls produced by rewinding
type RewindingAttributes struct {
	CoreSizeMM    decimal.Decimal `json:"coreSizeMm"`
	RollLengthM   decimal.Decimal `json:"rollLengthM"`
	NumberOfRolls int             `json:"numberOfRolls"`
}

// CuttingAttributes describes a cutting batch
type CuttingAttributes struct {
	CutLengthMM decimal.Decimal `json:"cutLengthMm"`
	PiecesCut   int             `json:"piecesCut"`
}

// QCOutcome is the result of the packing quality check
type QCOutcome string

const (
	QCOutcomePass   QCOutcome = "pass"
	QCOutcomeFail   QCOutcome = "fail"
	QCOutcomeRework QCOutcome = "rework"
)

// IsValid checks if the QCOutcome is a valid enum value
func (q QCOutcome) IsValid() bool {
	return q == QCOutcomePass || q == QCOutcomeFail || q == QCOutcomeRework
}

// PackingAttributes records cartons packed and the QC result
type PackingAttributes struct {
	CartonCount     int       `json:"cartonCount"`
	UnitsPerCarton  int       `json:"unitsPerCarton"`
	QCOutcome       QCOutcome `json:"qcOutcome"`
	QCRemarks       string    `json:"qcRemarks,omitempty"`
	QCInspectorName string    `json:"qcInspectorName,omitempty"`
}

// ReadyToDeliverAttributes records where packed goods are staged
type ReadyToDeliverAttributes struct {
	DispatchLocation string `json:"dispatchLocation"`
	PalletCount      int    `json:"palletCount"`
}

// IsEmpty reports whether no payload has been set
func (a StageAttributes) IsEmpty() bool {
	return a.Stage == "" && a.payloadCount() == 0
}

func (a StageAttributes) payloadCount() int {
	n := 0
	for _, set := range []bool{
		a.Coating != nil, a.Slitting != nil, a.Rewinding != nil,
		a.Cutting != nil, a.Packing != nil, a.ReadyToDeliver != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// payloadStage returns the stage of whichever payload is set
func (a StageAttributes) payloadStage() Stage {
	switch {
	case a.Coating != nil:
		return StageCoating
	case a.Slitting != nil:
		return StageSlitting
	case a.Rewinding != nil:
		return StageRewinding
	case a.Cutting != nil:
		return StageCutting
	case a.Packing != nil:
		return StagePacking
	case a.ReadyToDeliver != nil:
		return StageReadyToDeliver
	}
	return ""
}

// Validate checks the variant is well formed for the given work order stage.
// An empty attribute bag is always valid.
func (a StageAttributes) Validate(stage Stage) error {
	if a.IsEmpty() {
		return nil
	}
	if a.payloadCount() != 1 {
		return fmt.Errorf("exactly one stage payload must be set, got %d", a.payloadCount())
	}
	tag := a.payloadStage()
	if a.Stage != "" && a.Stage != tag {
		return fmt.Errorf("stage tag %q does not match %s payload", a.Stage, tag)
	}
	if tag != stage {
		return fmt.Errorf("%s attributes cannot be recorded against a %s work order", tag, stage)
	}

	switch tag {
	case StageSlitting:
		for i, w := range a.Slitting.SlitWidthsMM {
			if !w.IsPositive() {
				return fmt.Errorf("slitWidthsMm[%d] must be positive", i)
			}
		}
		if a.Slitting.NumberOfSlits < 0 {
			return fmt.Errorf("numberOfSlits must not be negative")
		}
	case StagePacking:
		if a.Packing.QCOutcome != "" && !a.Packing.QCOutcome.IsValid() {
			return fmt.Errorf("qcOutcome must be one of: pass fail rework")
		}
		if a.Packing.CartonCount < 0 || a.Packing.UnitsPerCarton < 0 {
			return fmt.Errorf("carton counts must not be negative")
		}
	case StageCutting:
		if a.Cutting.PiecesCut < 0 {
			return fmt.Errorf("piecesCut must not be negative")
		}
	case StageRewinding:
		if a.Rewinding.NumberOfRolls < 0 {
			return fmt.Errorf("numberOfRolls must not be negative")
		}
	case StageReadyToDeliver:
		if a.ReadyToDeliver.PalletCount < 0 {
			return fmt.Errorf("palletCount must not be negative")
		}
	}
	return nil
}

// Normalize fills the stage tag from the payload
func (a StageAttributes) Normalize() StageAttributes {
	if a.Stage == "" {
		a.Stage = a.payloadStage()
	}
	return a
}

// Value implements driver.Valuer, storing the variant as JSON text
func (a StageAttributes) Value() (driver.Value, error) {
	if a.IsEmpty() {
		return "{}", nil
	}
	b, err := json.Marshal(a.Normalize())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *StageAttributes) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*a = StageAttributes{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StageAttributes", value)
	}
	if len(data) == 0 {
		*a = StageAttributes{}
		return nil
	}
	var out StageAttributes
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode stage attributes: %w", err)
	}
	*a = out
	return nil
}
