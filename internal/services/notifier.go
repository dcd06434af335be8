package services

// Notifier is the fan-out primitive the lifecycle services emit through.
// Delivery is fire-and-forget: nothing is queued for offline recipients, and
// a miss is not an error.
type Notifier interface {
	// EmitToUser delivers to every active connection of one user and reports
	// whether any delivery occurred.
	EmitToUser(userID int, event string, data interface{}) bool
	// EmitToUsers delivers per user and returns the count of users reached.
	EmitToUsers(userIDs []int, event string, data interface{}) int
	// EmitToRoom broadcasts to every connection in a room and returns the
	// count of deliveries.
	EmitToRoom(room string, event string, data interface{}) int
	// EmitToRoomExceptUser broadcasts to a room, skipping every connection
	// belonging to one user. Read receipts skip the reader this way.
	EmitToRoomExceptUser(room string, event string, data interface{}, excludeUserID int) int
}
