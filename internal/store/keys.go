package store

// Key space shared by every backend. Arguments are raw ids/usernames;
// the backends are responsible for any transport-level escaping.
const (
	roomKeyPrefix       = "room:"
	roomNameKeyPrefix   = "roomname:"
	allRoomsKey         = "rooms"
	tombstoneKeyPrefix  = "roomdeleted:"
	activeUserKeyPrefix = "activeuser:"
	allActiveUsersKey   = "activeusers"
	kickMarkerPrefix    = "kickmarker:"
	deleteMarkerPrefix  = "deletemarker:"
	adminSessionsKey    = "adminsessions"
	adminTokenPrefix    = "admintoken:"
	adminPasswordKey    = "adminpassword"
	shutdownKey         = "shutdown"
)

func roomKey(id string) string             { return roomKeyPrefix + id }
func roomNameKey(nameKey string) string    { return roomNameKeyPrefix + nameKey }
func tombstoneKey(id string) string        { return tombstoneKeyPrefix + id }
func activeUserKey(username string) string { return activeUserKeyPrefix + username }
func kickMarkerKey(username string) string { return kickMarkerPrefix + username }
func deleteMarkerKey(roomId string) string { return deleteMarkerPrefix + roomId }
func adminTokenKey(token string) string    { return adminTokenPrefix + token }
