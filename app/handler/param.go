package handler

/***************************************************************** request ****************************************************************/

type LoginReq struct {
	Passkey string `json:"passkey"`
}

/***************************************************************** response ****************************************************************/

type JWTResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

type InRangeResp struct {
	PositionID string `json:"positionId"`
	InRange    bool   `json:"inRange"`
}
