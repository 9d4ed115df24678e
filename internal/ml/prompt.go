package ml

// AnalysisPrompt asks for the clock-position (1-12) of every food item
// relative to the tray center, answered as a bare JSON object.
const AnalysisPrompt = `
밥상의 중앙을 기준으로 각 음식들이 몇 시 방향에 있는지 구해줘.

응답은 다른 텍스트 없이 Json 형식으로 해줘

Ex)
{
    "흰쌀밥": "7시",
    "된장국": "11시",
    "김치": "8시"
}
`
