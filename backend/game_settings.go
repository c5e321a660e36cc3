package main

type PlayerType int

const (
	PlayerHuman PlayerType = iota
	PlayerAI
)

type GameSettings struct {
	BlackType    PlayerType `json:"-"`
	WhiteType    PlayerType `json:"-"`
	BlackWeight  float64    `json:"black_weight"`
	WhiteWeight  float64    `json:"white_weight"`
	Depth        int        `json:"depth"`
	UseIteration bool       `json:"use_iteration"`
}

func DefaultGameSettings() GameSettings {
	config := GetConfig()
	return GameSettings{
		BlackType:    PlayerHuman,
		WhiteType:    PlayerAI,
		BlackWeight:  config.AiWeight,
		WhiteWeight:  config.AiWeight,
		Depth:        config.AiDepth,
		UseIteration: config.AiUseIteration,
	}
}

func (s GameSettings) normalize() GameSettings {
	s.BlackWeight = clamp(s.BlackWeight, 0, 2)
	s.WhiteWeight = clamp(s.WhiteWeight, 0, 2)
	s.Depth = clamp(s.Depth, 0, 12)
	return s
}

func (s GameSettings) typeFor(color PlayerColor) PlayerType {
	if color == PlayerBlack {
		return s.BlackType
	}
	return s.WhiteType
}

func (s GameSettings) weightFor(color PlayerColor) float64 {
	if color == PlayerBlack {
		return s.BlackWeight
	}
	return s.WhiteWeight
}

func (s GameSettings) Mode() string {
	switch {
	case s.BlackType == PlayerAI && s.WhiteType == PlayerAI:
		return "ai_vs_ai"
	case s.BlackType == PlayerHuman && s.WhiteType == PlayerHuman:
		return "human_vs_human"
	default:
		return "ai_vs_human"
	}
}

func (s GameSettings) hasAI() bool {
	return s.BlackType == PlayerAI || s.WhiteType == PlayerAI
}
