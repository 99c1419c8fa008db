package onboarding

import (
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding/cmd"
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding/query"
	"gitlab.com/insightbox/insightbox-backend/pkg/env"
)

type App struct {
	CMD   Command
	Query Query
}

type Command struct {
	SignUp     *cmd.SignUpHandler
	Verify     *cmd.VerifyHandler
	ResendCode *cmd.ResendCodeHandler
}

type Query struct {
	GetAccount          *query.GetAccountHandler
	UsernameAvailable   *query.UsernameAvailableHandler
	GetVerificationCode *query.GetVerificationCodeHandler
}

type Args struct {
	Mode       env.Mode
	Repo       cmd.Repo
	Dispatcher cmd.VerificationDispatcher
}

func NewApp(args Args) *App {
	return &App{
		CMD: Command{
			SignUp: cmd.NewSignUpHandler(cmd.SignUpHandlerArgs{
				Repo:       args.Repo,
				Dispatcher: args.Dispatcher,
			}),
			Verify: cmd.NewVerifyHandler(cmd.VerifyHandlerArgs{
				Repo: args.Repo,
			}),
			ResendCode: cmd.NewResendCodeHandler(cmd.ResendCodeHandlerArgs{
				Repo:       args.Repo,
				Dispatcher: args.Dispatcher,
			}),
		},
		Query: Query{
			GetAccount:          query.NewGetAccountHandler(args.Repo),
			UsernameAvailable:   query.NewUsernameAvailableHandler(args.Repo),
			GetVerificationCode: query.NewGetVerificationCodeHandler(args.Repo, args.Mode),
		},
	}
}
