package coach

import (
	"fmt"
	"strings"

	"github.com/ashureev/link-coach/internal/domain"
)

const coachName = "그라운더"

// leaderName is the display name used by the coaching persona.
const leaderName = "지영"

type leadershipProfile struct {
	traits       []string
	improvements []string
}

var profiles = map[string]leadershipProfile{
	domain.IndividualVision: {
		traits: []string{
			"각 팀원의 고유한 강점과 성장 목표를 파악하여 맞춤형 코칭 제공",
			"개인의 커리어 비전과 조직의 방향성을 효과적으로 연결",
			"깊은 신뢰 관계를 구축하여 솔직한 피드백 문화 조성",
		},
		improvements: []string{
			"개별 성장에 집중하다 보면 팀 전체의 단기 성과 목표를 놓칠 수 있음",
			"모든 의견을 경청하려다 의사결정이 늦어질 수 있음",
		},
	},
}

func reportPrompt(leadershipType string, assessmentData []byte) string {
	var b strings.Builder
	b.WriteString("당신은 리더십 전문 코치입니다. 다음 리더십 유형에 대한 분석 리포트를 작성하세요.\n\n")
	fmt.Fprintf(&b, "리더십 유형: %s\n", leadershipType)
	if len(assessmentData) > 0 {
		fmt.Fprintf(&b, "진단 데이터: %s\n", assessmentData)
	}
	b.WriteString(`
리포트 형식:
1. 한 문장 요약 (이 리더의 핵심 특징)
2. 주요 강점 3가지 (각 강점별 제목과 설명)
3. 개선 영역 2가지 (각 영역별 제목, 설명, 실행 방안)
4. 실행 계획 (즉시/단기/장기로 구분)

간결하고 실질적으로 작성하세요.`)
	return b.String()
}

func chatSystemPrompt(leadershipType, reportContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 %q라는 이름의 AI 리더십 코치입니다.\n", coachName)
	fmt.Fprintf(&b, "%s 리더님은 %q 리더십 스타일을 가지고 있습니다.\n", leaderName, leadershipType)

	if p, ok := profiles[leadershipType]; ok {
		fmt.Fprintf(&b, "\n%s 리더의 특징:\n", leadershipType)
		for _, t := range p.traits {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n개선 영역:\n")
		for _, i := range p.improvements {
			fmt.Fprintf(&b, "- %s\n", i)
		}
	}

	if reportContext != "" {
		fmt.Fprintf(&b, "\n[리포트 요약]\n%s\n", reportContext)
	}

	b.WriteString("\n전문적이고 따뜻한 톤으로 실질적인 조언을 제공하세요. 답변은 2-3문장으로 간결하게 작성하세요.")
	return b.String()
}

func chatAcknowledgement(leadershipType string) string {
	return fmt.Sprintf("네, 알겠습니다. %s 리더님의 %s 리더십을 고려하여 실질적인 조언을 제공하겠습니다.", leaderName, leadershipType)
}
