package mail

type App struct {
	Dispatcher *Dispatcher
}

type Args struct {
	Sender MailSender
	Config Config
}

func NewApp(args Args) *App {
	return &App{
		Dispatcher: NewDispatcher(args.Sender, args.Config),
	}
}
