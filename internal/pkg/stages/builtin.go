package stages

import "github.com/medcrew/backend/internal/pkg/pipeline"

const (
	DiagnosisID = "diagnosis"
	TreatmentID = "treatment"
)

var defaultCapabilities = []pipeline.Capability{
	pipeline.CapabilityWebSearch,
	pipeline.CapabilityFetchPage,
}

// Diagnosis 诊断阶段
func Diagnosis() pipeline.StageSpec {
	return pipeline.StageSpec{
		ID:        DiagnosisID,
		Role:      "Clinical Diagnostician",
		Goal:      "Evaluate patient symptoms and history to determine potential medical conditions.",
		Backstory: "Specializes in identifying medical conditions by interpreting patient symptoms and historical data, leveraging advanced algorithms and comprehensive medical knowledge.",
		Task: "1. Review patient symptoms ({symptoms}) and medical history ({medical_history}).\n" +
			"2. Offer a preliminary diagnosis with possible conditions based on the input data.\n" +
			"3. Restrict the diagnosis to the most probable conditions.",
		ExpectedOutput: "A preliminary diagnosis outlining potential medical conditions.",
		Capabilities:   append([]pipeline.Capability(nil), defaultCapabilities...),
	}
}

// Treatment 治疗方案阶段，依赖诊断阶段的输出
func Treatment() pipeline.StageSpec {
	return pipeline.StageSpec{
		ID:        TreatmentID,
		Role:      "Medical Treatment Advisor",
		Goal:      "Formulate tailored treatment plans based on diagnostic evaluations.",
		Backstory: "Focuses on crafting individualized treatment plans by considering diagnoses, patient history, and modern medical practices to recommend optimal therapies.",
		Task: "1. Develop a step-by-step treatment plan based on the preliminary diagnosis.\n" +
			"2. Incorporate the patient's medical history ({medical_history}) and current symptoms ({symptoms}).\n" +
			"3. Provide detailed recommendations, including medications, lifestyle changes, and follow-up care instructions.",
		ExpectedOutput: "A detailed treatment plan customized to the patient's condition.",
		Capabilities:   append([]pipeline.Capability(nil), defaultCapabilities...),
		Requires:       []string{DiagnosisID},
	}
}

// Default 默认的阶段序列：诊断 -> 治疗
func Default() []pipeline.StageSpec {
	return []pipeline.StageSpec{Diagnosis(), Treatment()}
}
