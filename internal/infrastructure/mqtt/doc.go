// Package mqtt provides the MQTT transport for Voicematch.
//
// The service listens for match batches on the request topic and publishes
// resolved results on the result topic, so voice frontends that already
// speak MQTT can use the engine without HTTP.
//
// # Topics
//
//	voicematch/match/request    inbound batches (any of the three envelope shapes)
//	voicematch/match/result     outbound results, correlated by request_id when present
//	voicematch/system/status    retained online/offline status with LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.MatchRequest(), 1, func(topic string, payload []byte) error {
//	    // decode, match, publish result
//	    return nil
//	})
//
// Subscriptions are tracked and restored automatically on reconnect.
package mqtt
