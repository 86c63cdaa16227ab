// Package rosbridge is a rosbridge v2 websocket client feeding ingestion
// handlers.
//
// The client subscribes to one ROS topic per channel with
//
//	{"op": "subscribe", "id": "...", "topic": "gps/fix", "type": "sensor_msgs/NavSatFix"}
//
// and routes each {"op": "publish", "topic": ..., "msg": {...}} frame's msg
// to the handler of the matching channel. Lost connections are redialled
// with the retry policy; the attempt count resets after every successful
// dial.
package rosbridge
