package store

const (
	KeyAccounts       = "charlies-odds:users"
	KeyCurrentAccount = "charlies-odds:current-user"
	KeyBets           = "charlies-odds:bets"
	KeySeed           = "charlies-odds:seed"
	KeyGameSettings   = "charlies-odds:settings:%s" // per game identifier
	KeyGameLimits     = "charlies-odds:limits:%s"   // per game identifier
)
