package api

// Response shapes of the game API. Field names mirror the upstream JSON,
// quirks included (mixed snake/camel case, "Bettle" typo, string battle ids).

type RecommendListResponse struct {
	ResultBody RecommendListBody `json:"result_body"`
	ReturnCode int               `json:"return_code"`
}

type RecommendListBody struct {
	RecommendList []RecommendedPlayer `json:"recommend_list"`
}

type RecommendedPlayer struct {
	RegDate    string `json:"regDate"`
	SeasonCode string `json:"seasonCode"`
	HeroCode   string `json:"hero_code"`
	Nickname   string `json:"nickname"`
	WorldCode  string `json:"world_code"`
	NickNo     int64  `json:"nick_no"`
	Rank       int    `json:"rank"`
}

type BattleListResponse struct {
	ResultBody BattleListBody `json:"result_body"`
	ReturnCode int            `json:"return_code"`
}

type BattleListBody struct {
	NickNo     int64       `json:"nick_no"`
	WorldCode  string      `json:"world_code"`
	BattleList []RawBattle `json:"battle_list"`
}

// RawBattle is one player-relative match record. Everything is named from the
// perspective of the player whose history was requested ("my"/"enemy"), never
// p1/p2; the normalizer reconciles sides.
type RawBattle struct {
	// player id of the requesting player
	NicknameNo int64  `json:"nicknameno"`
	WorldCode  string `json:"worldCode"`
	// player id of the opponent
	MatchPlayerNicknameNo int64 `json:"matchPlayerNicknameno"`

	// numeric id, string-typed upstream
	BattleSeq  string `json:"battle_seq"`
	SeasonCode string `json:"season_code"`

	GradeCode      string `json:"grade_code"`
	EnemyGradeCode string `json:"enemy_grade_code"`
	// e.g. world_jpn
	EnemyWorldCode string `json:"enemy_world_code"`
	// the nickname (not id) of the opponent
	EnemyNickNo string `json:"enemy_nick_no"`

	// 1 - requester won, 2 - opponent won
	IsWin int `json:"iswin"`

	// "2023-10-18 14:55:39.0" format, no timezone
	BattleDay string `json:"battle_day"`
	TurnCount int    `json:"turn"`

	MyDeck    RawDeck `json:"my_deck"`
	EnemyDeck RawDeck `json:"enemy_deck"`

	// Draft-order blobs: JSON fragments missing their outer braces. One per
	// side despite both being keyed "my_team" inside.
	TeamBattleInfo      string `json:"teamBettleInfo"`
	TeamBattleInfoEnemy string `json:"teamBettleInfoenemy"`

	// initial speed / turn-order gauge fragment, same brace quirk
	BattleInfoExtra string `json:"battleInfoextra"`
}

type RawDeck struct {
	PrebanList []string      `json:"preban_list"`
	HeroList   []RawDeckHero `json:"hero_list"`
}

type RawDeckHero struct {
	HeroCode  string `json:"hero_code"`
	FirstPick int    `json:"first_pick"`
	MVP       int    `json:"mvp"`
	Ban       int    `json:"ban"`
}

type HeroCatalogResponse struct {
	En []CatalogHero `json:"en"`
}

type CatalogHero struct {
	Code        string `json:"code"`
	Grade       string `json:"grade"`
	Name        string `json:"name"`
	JobCd       string `json:"job_cd"`
	AttributeCd string `json:"attribute_cd"`
}

type ArtifactCatalogResponse struct {
	En []CatalogArtifact `json:"en"`
}

type CatalogArtifact struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
