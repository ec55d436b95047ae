package api

import (
	"codequery/internal/model"
	"codequery/internal/vote"
)

// answerView 是回答的响应形态：在模型之上展开赞成/反对的投票人 ID 集合。
type answerView struct {
	model.Answer
	Upvotes   []uint `json:"upvotes"`
	Downvotes []uint `json:"downvotes"`
}

// questionView 是"详细提问"的响应形态：提问 + 提问者 + 回答列表（倒序）。
type questionView struct {
	model.Question
	Answers []answerView `json:"answers"`
}

// ballotOf 将投票记录展开为投票人集合。
func ballotOf(a model.Answer) vote.Ballot {
	b := vote.Ballot{Upvoters: []uint{}, Downvoters: []uint{}}
	for _, v := range a.Votes {
		switch v.Value {
		case model.VoteUp:
			b.Upvoters = append(b.Upvoters, v.UserID)
		case model.VoteDown:
			b.Downvoters = append(b.Downvoters, v.UserID)
		}
	}
	return b
}

func newAnswerView(a model.Answer) answerView {
	b := ballotOf(a)
	return answerView{Answer: a, Upvotes: b.Upvoters, Downvotes: b.Downvoters}
}

func newQuestionView(q *model.Question) questionView {
	answers := make([]answerView, 0, len(q.Answers))
	for _, a := range q.Answers {
		answers = append(answers, newAnswerView(a))
	}
	return questionView{Question: *q, Answers: answers}
}
