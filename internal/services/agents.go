package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/types"
)

// Structured outputs for each agent call. Field shapes follow the JSON
// schemas sent with the request, so decoding failures mean the model broke
// strict mode, not a drift in our types.

type ActivitySeed struct {
	ActivityType     string   `json:"activity_type"`
	Prompt           string   `json:"prompt"`
	ExpectedEvidence []string `json:"expected_evidence"`
}

type LessonPlan struct {
	LessonTitle       string       `json:"lesson_title"`
	LearningObjective string       `json:"learning_objective"`
	KeyConcepts       []string     `json:"key_concepts"`
	LessonOutline     []string     `json:"lesson_outline"`
	SuggestedActivity ActivitySeed `json:"suggested_activity"`
	MasteryCriteria   []string     `json:"mastery_criteria"`
}

type LessonContent struct {
	LessonTitle  string   `json:"lesson_title"`
	LessonBody   string   `json:"lesson_body"`
	KeyTakeaways []string `json:"key_takeaways"`
}

type ActivitySpec struct {
	ActivityType  string   `json:"activity_type"`
	Instructions  string   `json:"instructions"`
	Prompt        string   `json:"prompt"`
	ScoringRubric []string `json:"scoring_rubric"`
	Hints         []string `json:"hints"`
}

type ActivityReview struct {
	Score           int      `json:"score"`
	Rationale       string   `json:"rationale"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Tips            []string `json:"tips"`
	MasteryDecision string   `json:"mastery_decision"` // not_yet|meets|exceeds
}

type AssessmentItem struct {
	Objective string   `json:"objective"`
	Prompt    string   `json:"prompt"`
	Rubric    []string `json:"rubric"`
}

type AssessmentSpec struct {
	AssessmentTitle string           `json:"assessment_title"`
	Items           []AssessmentItem `json:"items"`
}

type ObjectiveScore struct {
	Objective string `json:"objective"`
	Score     int    `json:"score"`
	Feedback  string `json:"feedback"`
}

type AssessmentReview struct {
	OverallScore    int              `json:"overall_score"`
	ObjectiveScores []ObjectiveScore `json:"objective_scores"`
	PassDecision    string           `json:"pass_decision"` // pass|fail
	NextSteps       []string         `json:"next_steps"`
}

// ActivityScorePoint summarizes one activity outcome for the assessment
// creator, so it can target weak objectives.
type ActivityScorePoint struct {
	Objective string  `json:"objective"`
	Score     float64 `json:"score"`
	Mastery   string  `json:"mastery"`
}

// AgentMeta attributes an agent call to a user/course for audit logging.
type AgentMeta struct {
	UserID           uuid.UUID
	CourseInstanceID *uuid.UUID
}

type AgentService interface {
	PlanLesson(ctx context.Context, meta AgentMeta, objective, description string, allObjectives []string, profile map[string]any) (*LessonPlan, error)
	WriteLesson(ctx context.Context, meta AgentMeta, plan *LessonPlan, description string, profile map[string]any) (*LessonContent, error)
	CreateActivity(ctx context.Context, meta AgentMeta, seed ActivitySeed, objective string, masteryCriteria []string, profile map[string]any) (*ActivitySpec, error)
	ReviewActivity(ctx context.Context, meta AgentMeta, submission, objective, activityPrompt string, rubric []string) (*ActivityReview, error)
	CreateAssessment(ctx context.Context, meta AgentMeta, objectives []string, description string, scores []ActivityScorePoint, profile map[string]any) (*AssessmentSpec, error)
	ReviewAssessment(ctx context.Context, meta AgentMeta, spec *AssessmentSpec, submissions []AssessmentSubmission) (*AssessmentReview, error)
}

type AssessmentSubmission struct {
	Objective string `json:"objective"`
	Text      string `json:"text"`
}

type agentService struct {
	log          *logger.Logger
	ai           OpenAIClient
	agentLogRepo repos.AgentLogRepo
	modelName    string
}

func NewAgentService(baseLog *logger.Logger, ai OpenAIClient, agentLogRepo repos.AgentLogRepo, modelName string) AgentService {
	return &agentService{
		log:          baseLog.With("service", "AgentService"),
		ai:           ai,
		agentLogRepo: agentLogRepo,
		modelName:    modelName,
	}
}

// run executes one agent call and records an agent_log row around it.
// Logging failures are reported but never fail the call.
func (s *agentService) run(ctx context.Context, meta AgentMeta, agentName, system, user, schemaName string, schema map[string]any, out any) error {
	entry := &types.AgentLog{
		ID:               uuid.New(),
		UserID:           meta.UserID,
		CourseInstanceID: meta.CourseInstanceID,
		AgentName:        agentName,
		Status:           "running",
		ModelName:        s.modelName,
		CreatedAt:        time.Now(),
	}
	if s.agentLogRepo != nil {
		if _, err := s.agentLogRepo.Create(ctx, nil, []*types.AgentLog{entry}); err != nil {
			s.log.Warn("failed to record agent log", "agent", agentName, "error", err)
		}
	}

	start := time.Now()
	raw, err := s.ai.GenerateJSON(ctx, system, user, schemaName, schema)
	duration := time.Since(start).Milliseconds()

	if err == nil {
		err = json.Unmarshal(raw, out)
		if err != nil {
			err = fmt.Errorf("decode %s output: %w", agentName, err)
		}
	}

	if s.agentLogRepo != nil {
		updates := map[string]interface{}{
			"status":      "succeeded",
			"duration_ms": duration,
		}
		if err != nil {
			updates["status"] = "failed"
			updates["error"] = err.Error()
		}
		if uErr := s.agentLogRepo.UpdateFields(ctx, nil, entry.ID, updates); uErr != nil {
			s.log.Warn("failed to update agent log", "agent", agentName, "error", uErr)
		}
	}

	return err
}

func stringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func appendProfile(b *strings.Builder, profile map[string]any) {
	if len(profile) == 0 {
		return
	}
	enc, _ := json.Marshal(profile)
	fmt.Fprintf(b, "\nLearner profile: %s\n", enc)
}

func (s *agentService) PlanLesson(ctx context.Context, meta AgentMeta, objective, description string, allObjectives []string, profile map[string]any) (*LessonPlan, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lesson_title":       map[string]any{"type": "string"},
			"learning_objective": map[string]any{"type": "string"},
			"key_concepts":       stringArraySchema(),
			"lesson_outline":     stringArraySchema(),
			"suggested_activity": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"activity_type":     map[string]any{"type": "string"},
					"prompt":            map[string]any{"type": "string"},
					"expected_evidence": stringArraySchema(),
				},
				"required":             []string{"activity_type", "prompt", "expected_evidence"},
				"additionalProperties": false,
			},
			"mastery_criteria": stringArraySchema(),
		},
		"required":             []string{"lesson_title", "learning_objective", "key_concepts", "lesson_outline", "suggested_activity", "mastery_criteria"},
		"additionalProperties": false,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course description: %s\n\nLearning objective for THIS lesson: %s\n", description, objective)
	var other []string
	for _, o := range allObjectives {
		if o != objective {
			other = append(other, o)
		}
	}
	if len(other) > 0 {
		b.WriteString("\nOther objectives in this course (DO NOT teach these, they have their own lessons):\n")
		for _, o := range other {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	appendProfile(&b, profile)

	system := "You are an expert instructional designer creating a lesson plan for one learning objective within a course. " +
		"Produce a structured plan a downstream lesson writer and activity creator can use without guessing: " +
		"a specific lesson_title, the objective restated as a measurable outcome, 2-8 key_concepts, a 3-10 step lesson_outline, " +
		"a suggested_activity seed (type, prompt, 2-5 expected evidence items) and 2-6 rubric-style mastery_criteria. " +
		"Scope control: cover ONLY the assigned objective; other objectives have their own lessons."

	var plan LessonPlan
	if err := s.run(ctx, meta, "lesson_planner", system, b.String(), "lesson_plan", schema, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *agentService) WriteLesson(ctx context.Context, meta AgentMeta, plan *LessonPlan, description string, profile map[string]any) (*LessonContent, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lesson_title":  map[string]any{"type": "string"},
			"lesson_body":   map[string]any{"type": "string"},
			"key_takeaways": stringArraySchema(),
		},
		"required":             []string{"lesson_title", "lesson_body", "key_takeaways"},
		"additionalProperties": false,
	}

	planJSON, _ := json.MarshalIndent(plan, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Course description: %s\n\nLesson plan:\n%s\n", description, planJSON)
	appendProfile(&b, profile)

	system := "You are an expert educational content writer. Given a lesson plan, write a complete lesson in Markdown: " +
		"state the learning objective, explain why it matters, walk through the key concepts with clear steps, " +
		"include at least one worked example, and end with a recap. Use Markdown headings, lists and code blocks where appropriate. " +
		"Minimum 200 characters for the lesson body. Also provide 3-6 concise key takeaways."

	var content LessonContent
	if err := s.run(ctx, meta, "lesson_writer", system, b.String(), "lesson_content", schema, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

func (s *agentService) CreateActivity(ctx context.Context, meta AgentMeta, seed ActivitySeed, objective string, masteryCriteria []string, profile map[string]any) (*ActivitySpec, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"activity_type":  map[string]any{"type": "string"},
			"instructions":   map[string]any{"type": "string"},
			"prompt":         map[string]any{"type": "string"},
			"scoring_rubric": stringArraySchema(),
			"hints":          stringArraySchema(),
		},
		"required":             []string{"activity_type", "instructions", "prompt", "scoring_rubric", "hints"},
		"additionalProperties": false,
	}

	seedJSON, _ := json.MarshalIndent(seed, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Learning objective: %s\n\nMastery criteria:\n", objective)
	for _, c := range masteryCriteria {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nActivity seed:\n%s\n", seedJSON)
	appendProfile(&b, profile)

	system := "You are an expert activity designer for educational courses. Given an activity seed and the lesson's mastery criteria, " +
		"create a complete practice activity: actionable instructions, a specific prompt, " +
		"3-6 gradeable scoring_rubric criteria mapped to the mastery criteria, and 2-5 scaffolding hints that guide without giving the answer."

	var spec ActivitySpec
	if err := s.run(ctx, meta, "activity_creator", system, b.String(), "activity_spec", schema, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *agentService) ReviewActivity(ctx context.Context, meta AgentMeta, submission, objective, activityPrompt string, rubric []string) (*ActivityReview, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":            map[string]any{"type": "integer"},
			"rationale":        map[string]any{"type": "string"},
			"strengths":        stringArraySchema(),
			"improvements":     stringArraySchema(),
			"tips":             stringArraySchema(),
			"mastery_decision": map[string]any{"type": "string", "enum": []string{"not_yet", "meets", "exceeds"}},
		},
		"required":             []string{"score", "rationale", "strengths", "improvements", "tips", "mastery_decision"},
		"additionalProperties": false,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Learning objective: %s\n\nActivity prompt: %s\n\nScoring rubric:\n", objective, activityPrompt)
	for _, c := range rubric {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nLearner submission:\n%s\n", submission)

	system := "You are an expert reviewer grading a learner's activity submission against the provided rubric. " +
		"Return a 0-100 score, a rationale referencing rubric criteria, 2-5 strengths, 2-5 improvements, 2-6 tips, " +
		"and a mastery_decision of not_yet, meets or exceeds."

	var review ActivityReview
	if err := s.run(ctx, meta, "activity_reviewer", system, b.String(), "activity_review", schema, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *agentService) CreateAssessment(ctx context.Context, meta AgentMeta, objectives []string, description string, scores []ActivityScorePoint, profile map[string]any) (*AssessmentSpec, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assessment_title": map[string]any{"type": "string"},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"objective": map[string]any{"type": "string"},
						"prompt":    map[string]any{"type": "string"},
						"rubric":    stringArraySchema(),
					},
					"required":             []string{"objective", "prompt", "rubric"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"assessment_title", "items"},
		"additionalProperties": false,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course description: %s\n\nLearning objectives:\n", description)
	for _, o := range objectives {
		fmt.Fprintf(&b, "- %s\n", o)
	}
	if len(scores) > 0 {
		enc, _ := json.Marshal(scores)
		fmt.Fprintf(&b, "\nActivity performance data:\n%s\n", enc)
	}
	appendProfile(&b, profile)

	system := "You are an expert assessment designer. Create a summative assessment covering all learning objectives: " +
		"one item per objective (cap 6), each with a prompt requiring concrete evidence of mastery and a 3-6 criteria rubric. " +
		"If activity score data is provided, target weak areas more heavily. Keep it short."

	var spec AssessmentSpec
	if err := s.run(ctx, meta, "assessment_creator", system, b.String(), "assessment_spec", schema, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *agentService) ReviewAssessment(ctx context.Context, meta AgentMeta, spec *AssessmentSpec, submissions []AssessmentSubmission) (*AssessmentReview, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_score": map[string]any{"type": "integer"},
			"objective_scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"objective": map[string]any{"type": "string"},
						"score":     map[string]any{"type": "integer"},
						"feedback":  map[string]any{"type": "string"},
					},
					"required":             []string{"objective", "score", "feedback"},
					"additionalProperties": false,
				},
			},
			"pass_decision": map[string]any{"type": "string", "enum": []string{"pass", "fail"}},
			"next_steps":    stringArraySchema(),
		},
		"required":             []string{"overall_score", "objective_scores", "pass_decision", "next_steps"},
		"additionalProperties": false,
	}

	specJSON, _ := json.MarshalIndent(spec, "", "  ")
	subJSON, _ := json.MarshalIndent(submissions, "", "  ")
	user := fmt.Sprintf("Assessment spec:\n%s\n\nLearner submissions:\n%s\n", specJSON, subJSON)

	system := "You are an expert assessment reviewer. Score each objective 0-100 with specific feedback referencing the item's rubric, " +
		"aggregate into overall_score, decide pass (>= 70) or fail, and give actionable next_steps targeting any objective below 70."

	var review AssessmentReview
	if err := s.run(ctx, meta, "assessment_reviewer", system, user, "assessment_review", schema, &review); err != nil {
		return nil, err
	}
	return &review, nil
}
