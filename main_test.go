package cms

import (
	"github.com/github/fakeca"
)

var (
	root         = fakeca.New(fakeca.IsCA)
	intermediate = root.Issue(fakeca.IsCA)
	leaf         = intermediate.Issue()
)
