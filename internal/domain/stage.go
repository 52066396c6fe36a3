package domain

// Stage is one step of the manufacturing pipeline
type Stage string

const (
	StageCoating        Stage = "coating"
	StageSlitting       Stage = "slitting"
	StageRewinding      Stage = "rewinding"
	StageCutting        Stage = "cutting"
	StagePacking        Stage = "packing"
	StageReadyToDeliver Stage = "ready_to_deliver"
	StageDelivered      Stage = "delivered"
)

// StageDefinition describes a stage and the transformation it performs
type StageDefinition struct {
	Order          int    `json:"order"`
	Stage          Stage  `json:"stage"`
	Name           string `json:"name"`
	Transformation string `json:"transformation"`
	Productive     bool   `json:"productive"`
}

// stageTable is the pipeline in strict order
var stageTable = []StageDefinition{
	{Order: 1, Stage: StageCoating, Name: "Coating", Transformation: "Adhesive is coated onto base film to produce jumbo rolls", Productive: true},
	{Order: 2, Stage: StageSlitting, Name: "Slitting", Transformation: "Jumbo rolls are slit into narrower log rolls", Productive: true},
	{Order: 3, Stage: StageRewinding, Name: "Rewinding", Transformation: "Log rolls are rewound onto cores at the ordered length", Productive: true},
	{Order: 4, Stage: StageCutting, Name: "Cutting", Transformation: "Rewound rolls are cut to final size", Productive: true},
	{Order: 5, Stage: StagePacking, Name: "Packing", Transformation: "Finished rolls are QC checked and packed into cartons", Productive: true},
	{Order: 6, Stage: StageReadyToDeliver, Name: "Ready to Deliver", Transformation: "Packed cartons are palletised and staged for dispatch", Productive: true},
	{Order: 7, Stage: StageDelivered, Name: "Delivered", Transformation: "Goods handed over to the customer; marks sheet completion", Productive: false},
}

// StageDefinitions returns a copy of the ordered stage table
func StageDefinitions() []StageDefinition {
	out := make([]StageDefinition, len(stageTable))
	copy(out, stageTable)
	return out
}

// AllStages returns all seven stages in pipeline order
func AllStages() []Stage {
	stages := make([]Stage, len(stageTable))
	for i, def := range stageTable {
		stages[i] = def.Stage
	}
	return stages
}

// ProductiveStages returns the stages that get work orders, in pipeline order
func ProductiveStages() []Stage {
	stages := make([]Stage, 0, len(stageTable)-1)
	for _, def := range stageTable {
		if def.Productive {
			stages = append(stages, def.Stage)
		}
	}
	return stages
}

// IsValid checks if the Stage is one of the seven pipeline stages
func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

// IsProductive reports whether the stage transforms material (everything but delivered)
func (s Stage) IsProductive() bool {
	i := s.Index()
	return i >= 0 && stageTable[i].Productive
}

// Index returns the zero-based pipeline position, or -1 for unknown stages
func (s Stage) Index() int {
	for i, def := range stageTable {
		if def.Stage == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage; ok is false for delivered and unknown stages
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(stageTable)-1 {
		return "", false
	}
	return stageTable[i+1].Stage, true
}

// Definition returns the table entry for the stage
func (s Stage) Definition() (StageDefinition, bool) {
	i := s.Index()
	if i < 0 {
		return StageDefinition{}, false
	}
	return stageTable[i], true
}
