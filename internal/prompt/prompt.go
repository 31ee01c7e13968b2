// Package prompt builds the analysis request sent to the reasoning service.
package prompt

import (
	"fmt"
	"strings"

	"github.com/opensitee/ingredientcheck/internal/domain"
)

// DefaultHealthContext stands in when the user gives no health condition.
const DefaultHealthContext = "general product analysis"

// Role is the fixed persona given to the reasoning service.
const Role = `You are an expert Food Product Analyst specializing in nutrition and health effects of ingredients.
Your job is to analyze product ingredients and assess their impact.
Consider:
- The nutritional impact of the product.
- Artificial additives, preservatives, and harmful chemicals.
- Provide a clear, science-backed summary including risks and better alternatives.
* Also rate the ingredients with a 1-5 star rating.
* Use emojis to make the analysis more engaging and fun.`

// Instructions is the fixed instruction set attached to every request.
const Instructions = `* Analyze the list of ingredients carefully.
* Highlight harmful additives, preservatives, and chemicals.
* Explain the nutritional value and potential risks.
* Suggest healthier alternatives if necessary.
* Rate the ingredients from 1-5 stars.
* Make the explanation fun, engaging, and easy to understand by using emojis and bold important terms.
* Use the web_search tool when an ingredient or its health effects are unfamiliar.`

const userTemplate = `The user has a health problem: %s
Analyze the ingredients: %s
Identify any harmful ingredients, nutritional impacts, and provide a 1-5 star rating.
Suggest healthier alternatives if needed.
Make sure to include **emojis** and **bold important terms** to make the summary more fun and engaging!`

// Compose embeds the extracted text verbatim, without trimming or escaping.
// A blank health condition resolves to DefaultHealthContext.
func Compose(text, health string) domain.AnalysisPrompt {
	return domain.AnalysisPrompt{
		System: Role + "\n\n" + Instructions,
		User:   fmt.Sprintf(userTemplate, ResolveHealth(health), text),
	}
}

// ResolveHealth returns health, or DefaultHealthContext if it is blank.
func ResolveHealth(health string) string {
	if strings.TrimSpace(health) == "" {
		return DefaultHealthContext
	}
	return health
}
