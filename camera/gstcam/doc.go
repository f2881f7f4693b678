// Package gstcam backs the camera session with a GStreamer decode
// pipeline, for capture hardware whose useful modes are compressed.
//
// # Philosophy
//
// High-resolution UVC cameras top out early in raw modes; the real
// frame rates hide behind MJPEG. Rather than teach the session about
// JPEG, this backend runs a small GStreamer graph per device:
//
//	v4l2src → image/jpeg caps → jpegdec → videoconvert →
//	videoscale → videorate → RGBA caps → appsink
//
// and hands the session the same RGBA frames every other backend
// produces. The appsink keeps one buffer and drops the rest, so
// pipeline pressure never reaches the session.
//
// # Controls
//
// This backend owns the decode path, not the sensor: zoom and focus
// report unsupported. Rigs that need UVC controls map those nodes
// through the v4l2cam backend instead; both can serve one provider
// list split by node.
//
// # Stills
//
// A still is a clone of the newest decoded frame, at stream
// resolution. Flash is accepted and ignored.
package gstcam
