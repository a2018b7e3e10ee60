package dialogue

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// rule is one (match, reply) pair in an ordered tier table. Tables are
// evaluated top to bottom and the first substring match wins; the table
// order is part of the engine's contract and is covered by tests.
type rule struct {
	match string
	reply string
}

// languageRule redirects a caller asking for another language. display
// is how the language is named back to the caller.
type languageRule struct {
	match   string
	display string
}

var titleCaser = cases.Title(language.English)

// languageRules lists language names (Latin and native script) that
// trigger the redirect tier. Checked before the keyword tiers so a
// language name is never misread as a topic keyword.
var languageRules = buildLanguageRules(
	"hindi", "हिंदी", "marathi", "मराठी", "gujarati", "tamil", "bengali", "spanish", "french",
)

func buildLanguageRules(names ...string) []languageRule {
	rules := make([]languageRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, languageRule{
			match:   name,
			display: titleCaser.String(name),
		})
	}
	return rules
}

// confusionSignals trigger a clarifying restatement of the offer.
var confusionSignals = []string{
	"what", "confused", "understand", "repeat", "again", "slow", "unclear",
}

const confusionReply = "Let me speak more clearly. I'm calling about website and app development services. Are you interested in getting more customers online?"

// keywordRules maps short keywords to canned follow-up questions.
var keywordRules = []rule{
	{"yes", "Awesome! What type of project are you thinking about?"},
	{"yeah", "Great! Tell me more about your business."},
	{"sure", "Perfect! What industry are you in?"},
	{"no", "No worries! What challenges are you facing with your current website?"},
	{"nope", "That's fine! Are you getting enough customers online right now?"},
	{"hello", "Hi! So you're interested in our services. What can we build for you?"},
	{"hi", "Hey there! What type of website or app are you looking for?"},
	{"website", "Perfect! Are you starting fresh or improving an existing site?"},
	{"app", "Mobile apps are huge! What kind of app are you thinking?"},
	{"interested", "Fantastic! What's your biggest online challenge right now?"},
	{"price", "Great question! What's your budget range we're working with?"},
	{"cost", "Smart to ask! Depends on your needs. What's your rough budget?"},
	{"busy", "Totally understand! Just 30 seconds - do you have a website now?"},
	{"maybe", "Fair enough! What would make this a definite yes for you?"},
	{"okay", "Great! So what's holding your business back online right now?"},
	{"good", "Awesome! What's the main goal for your project?"},
	{"marketing", "Perfect! We do digital marketing too. What's working for you now?"},
	{"help", "Absolutely! What's your biggest business challenge right now?"},
	{"nothing", "I understand. Let me ask differently - do you currently have a website?"},
	{"fine", "Great! So what brings you to look into our services?"},
	{"business", "Excellent! What type of business do you run?"},
	{"service", "Perfect! What services are you most interested in?"},
	{"money", "Smart question! What budget range are you comfortable with?"},
	{"time", "I appreciate your time! What's most important for your business right now?"},
}

// buildPhraseRules returns the ordered multi-word phrase table. Two
// entries name the agent and company, so the table is built per engine.
// Evaluated only when no keyword rule matched.
func buildPhraseRules(agentName, companyName string) []rule {
	return []rule{
		{"tell me more", "Great! We've helped 200+ businesses grow online. What industry are you in?"},
		{"sounds good", "Perfect! What's your main business goal right now?"},
		{"not sure", "No problem! What's your business about?"},
		{"how much", "Smart question! Depends on what you need. What's your rough budget?"},
		{"not interested", "I understand! Before I go, are you happy with your current online presence?"},
		{"call back", "Sure thing! What's the best time to reach you?"},
		{"too expensive", "I get it! What budget were you thinking?"},
		{"need to think", "Totally fair! What questions can I answer to help you decide?"},
		{"dont understand", "Let me explain better. We build websites that get you more customers. Sound useful?"},
		{"speak english", "Absolutely! I'll speak clearly. We help businesses get more customers online. Interested?"},
		{"too fast", "Sorry about that! Let me slow down. We build websites for businesses. Does that interest you?"},
		{"what company", "We're " + companyName + " - we build websites and apps for businesses. What's your business about?"},
		{"who are you", "I'm " + agentName + " from " + companyName + ". We help businesses get more customers online. What do you do?"},
		{"wrong number", "Oh sorry! But since I have you - do you own a business that could use more online customers?"},
	}
}

const defaultReply = "That's interesting! Tell me more about what you're looking for."
